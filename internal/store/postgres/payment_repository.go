package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"afripay/internal/domain/payment"
	"afripay/internal/store/repositories"

	"github.com/jackc/pgx/v5"
)

const paymentRequestColumns = `
	id, reference, user_id, amount, currency, afripay_fee, total_amount, recipient,
	label, message, memo, description, customer_email, payment_url, qr_code_url,
	status, signature, expires_at, created_at, updated_at, completed_at`

// paymentRequestRepository implements PaymentRequestRepository
type paymentRequestRepository struct {
	db querier
}

// NewPaymentRequestRepository creates a repository bound to the pool or a tx.
func NewPaymentRequestRepository(db querier) repositories.PaymentRequestRepository {
	return &paymentRequestRepository{db: db}
}

func (r *paymentRequestRepository) Create(ctx context.Context, p *payment.Request) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_requests (`+paymentRequestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		p.ID, p.Reference, p.UserID, p.Amount, string(p.Currency), p.Fee, p.Total, p.Recipient,
		p.Label, p.Message, p.Memo, p.Description, p.CustomerEmail, p.PaymentURL, p.QRCodeURL,
		string(p.Status), nullString(p.Signature), p.ExpiresAt, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return err
}

func (r *paymentRequestRepository) FindByReference(ctx context.Context, reference string) (*payment.Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE reference = $1`, reference)
	return scanPaymentRequest(row)
}

func (r *paymentRequestRepository) List(ctx context.Context, f repositories.ListFilter) ([]*payment.Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentRequestColumns+`
		FROM payment_requests
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, f.UserID, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPaymentRequests(rows)
}

func (r *paymentRequestRepository) ListOpen(ctx context.Context, now time.Time, limit int) ([]*payment.Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentRequestColumns+`
		FROM payment_requests
		WHERE status = 'pending' AND expires_at > $1
		ORDER BY created_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPaymentRequests(rows)
}

func (r *paymentRequestRepository) MarkCompleted(ctx context.Context, reference, signature string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_requests
		SET status = 'completed', signature = $2, completed_at = $3, updated_at = $3
		WHERE reference = $1 AND status = 'pending'`, reference, signature, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRequestRepository) MarkCancelled(ctx context.Context, reference string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_requests
		SET status = 'cancelled', updated_at = $2
		WHERE reference = $1 AND status = 'pending'`, reference, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// scanPaymentRequest scans a single row; pgx.Rows satisfies pgx.Row too.
func scanPaymentRequest(row pgx.Row) (*payment.Request, error) {
	var p payment.Request
	var signature sql.NullString

	err := row.Scan(
		&p.ID, &p.Reference, &p.UserID, &p.Amount, &p.Currency, &p.Fee, &p.Total, &p.Recipient,
		&p.Label, &p.Message, &p.Memo, &p.Description, &p.CustomerEmail, &p.PaymentURL, &p.QRCodeURL,
		&p.Status, &signature, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if signature.Valid {
		p.Signature = signature.String
	}
	return &p, nil
}

func scanPaymentRequests(rows pgx.Rows) ([]*payment.Request, error) {
	out := []*payment.Request{}
	for rows.Next() {
		p, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
