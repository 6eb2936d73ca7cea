package postgres

import (
	"context"
	"errors"

	"afripay/internal/domain/transaction"
	"afripay/internal/store/repositories"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	id, signature, reference, payment_request_id, user_id, amount, platform_fee, net_amount,
	currency, sender_wallet, recipient_wallet, slot, block_time, status, created_at`

// transactionRepository implements TransactionRepository
type transactionRepository struct {
	db querier
}

func NewTransactionRepository(db querier) repositories.TransactionRepository {
	return &transactionRepository{db: db}
}

// Upsert is keyed on signature. On conflict the stored row wins and is returned
// untouched, so replays observe the original settlement.
func (r *transactionRepository) Upsert(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (signature) DO UPDATE SET signature = transactions.signature
		RETURNING `+transactionColumns,
		t.ID, t.Signature, t.Reference, t.PaymentRequestID, t.UserID, t.GrossAmount, t.PlatformFee, t.NetAmount,
		string(t.Currency), t.SenderWallet, t.RecipientWallet, int64(t.Slot), t.BlockTime, t.Status, t.CreatedAt)
	return scanTransaction(row)
}

func (r *transactionRepository) FindBySignature(ctx context.Context, signature string) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE signature = $1`, signature)
	return scanTransaction(row)
}

func (r *transactionRepository) List(ctx context.Context, f repositories.ListFilter) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, f.UserID, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*transaction.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var slot int64

	err := row.Scan(
		&t.ID, &t.Signature, &t.Reference, &t.PaymentRequestID, &t.UserID, &t.GrossAmount, &t.PlatformFee, &t.NetAmount,
		&t.Currency, &t.SenderWallet, &t.RecipientWallet, &slot, &t.BlockTime, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Slot = uint64(slot)
	return &t, nil
}
