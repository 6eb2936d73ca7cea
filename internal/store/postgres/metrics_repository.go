package postgres

import (
	"context"

	"afripay/internal/domain/payment"
	"afripay/internal/store/repositories"
)

type metricsRepository struct {
	db querier
}

func NewMetricsRepository(db querier) repositories.MetricsRepository {
	return &metricsRepository{db: db}
}

func (r *metricsRepository) Metrics(ctx context.Context, userID string) (*repositories.Metrics, error) {
	m := &repositories.Metrics{
		RequestsByStatus: map[payment.Status]int64{
			payment.StatusPending:   0,
			payment.StatusCompleted: 0,
			payment.StatusCancelled: 0,
		},
		Volume: []repositories.CurrencyVolume{},
	}

	rows, err := r.db.Query(ctx, `
		SELECT status, count(*)
		FROM payment_requests
		WHERE ($1 = '' OR user_id = $1)
		GROUP BY status`, userID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status payment.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		m.RequestsByStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT currency, count(*), COALESCE(sum(amount), 0), COALESCE(sum(platform_fee), 0), COALESCE(sum(net_amount), 0)
		FROM transactions
		WHERE ($1 = '' OR user_id = $1)
		GROUP BY currency
		ORDER BY currency`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v repositories.CurrencyVolume
		if err := rows.Scan(&v.Currency, &v.Count, &v.Gross, &v.Fees, &v.Net); err != nil {
			return nil, err
		}
		m.Volume = append(m.Volume, v)
	}
	return m, rows.Err()
}
