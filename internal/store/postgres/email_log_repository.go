package postgres

import (
	"context"

	"afripay/internal/email"
)

// emailLogRepository records every delivery attempt outcome.
type emailLogRepository struct {
	db querier
}

func NewEmailLogRepository(db querier) email.LogStore {
	return &emailLogRepository{db: db}
}

func (r *emailLogRepository) SaveLog(ctx context.Context, l *email.Log) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO email_logs (recipient, subject, template, provider_message_id, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		l.Recipient, l.Subject, l.Template, l.ProviderMessageID, string(l.Status), l.Error, l.CreatedAt).Scan(&l.ID)
}
