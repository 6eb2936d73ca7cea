package postgres

import (
	"context"

	"afripay/internal/email"
	"afripay/internal/store/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the pool-bound repositories wired at startup.
type Store struct {
	db *pgxpool.Pool

	PaymentRequests repositories.PaymentRequestRepository
	Transactions    repositories.TransactionRepository
	Invoices        repositories.InvoiceRepository
	Events          repositories.EventRepository
	Metrics         repositories.MetricsRepository
	EmailLogs       email.LogStore
	UnitOfWork      repositories.UnitOfWork
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:              db,
		PaymentRequests: NewPaymentRequestRepository(db),
		Transactions:    NewTransactionRepository(db),
		Invoices:        NewInvoiceRepository(db),
		Events:          NewEventRepository(db),
		Metrics:         NewMetricsRepository(db),
		EmailLogs:       NewEmailLogRepository(db),
		UnitOfWork:      NewUnitOfWork(db),
	}
}

// Ping backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }
