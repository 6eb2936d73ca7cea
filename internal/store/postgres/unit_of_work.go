package postgres

import (
	"context"

	"afripay/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// unitOfWork implements UnitOfWork interface
type unitOfWork struct {
	db *pgxpool.Pool
}

// NewUnitOfWork creates a new unit of work
func NewUnitOfWork(db *pgxpool.Pool) repositories.UnitOfWork {
	return &unitOfWork{db: db}
}

// Begin starts a read-committed transaction. The conditional status updates
// and the signature upsert make that isolation level sufficient.
func (uow *unitOfWork) Begin(ctx context.Context) (repositories.Transaction, error) {
	tx, err := uow.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &pgTransaction{tx: tx}, nil
}

// pgTransaction implements Transaction interface
type pgTransaction struct {
	tx pgx.Tx
}

func (t *pgTransaction) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback after Commit only returns pgx.ErrTxClosed, so callers defer it
// unconditionally and ignore the error.
func (t *pgTransaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *pgTransaction) PaymentRequests() repositories.PaymentRequestRepository {
	return NewPaymentRequestRepository(t.tx)
}

func (t *pgTransaction) Transactions() repositories.TransactionRepository {
	return NewTransactionRepository(t.tx)
}

func (t *pgTransaction) Invoices() repositories.InvoiceRepository {
	return NewInvoiceRepository(t.tx)
}

func (t *pgTransaction) Events() repositories.EventRepository {
	return NewEventRepository(t.tx)
}
