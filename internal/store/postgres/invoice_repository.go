package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"afripay/internal/domain/invoice"
	"afripay/internal/store/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `
	id, user_id, invoice_number, customer_email, customer_name, items, amount, currency,
	due_date, notes, status, payment_reference, paid_at, created_at, updated_at`

type invoiceRepository struct {
	db querier
}

func NewInvoiceRepository(db querier) repositories.InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		inv.ID, inv.UserID, inv.Number, inv.CustomerEmail, inv.CustomerName, items, inv.Amount, string(inv.Currency),
		inv.DueDate, inv.Notes, string(inv.Status), nullString(inv.PaymentReference), inv.PaidAt, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepository) FindByPaymentReference(ctx context.Context, reference string) (*invoice.Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_reference = $1`, reference))
}

func (r *invoiceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*invoice.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status = $2, paid_at = $3, updated_at = $4
		WHERE id = $1`, inv.ID, string(inv.Status), inv.PaidAt, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	var items []byte
	var ref *string

	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.Number, &inv.CustomerEmail, &inv.CustomerName, &items, &inv.Amount, &inv.Currency,
		&inv.DueDate, &inv.Notes, &inv.Status, &ref, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("invoice %s items: %w", inv.ID, err)
	}
	if ref != nil {
		inv.PaymentReference = *ref
	}
	return &inv, nil
}
