package repositories

import (
	"context"
	"errors"
	"time"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
	"afripay/internal/fee"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// ListFilter narrows list queries. Empty fields match everything.
type ListFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// PaymentRequestRepository defines the contract for payment request data access
type PaymentRequestRepository interface {
	Create(ctx context.Context, r *payment.Request) error
	FindByReference(ctx context.Context, reference string) (*payment.Request, error)
	List(ctx context.Context, f ListFilter) ([]*payment.Request, error)
	// ListOpen returns pending requests not yet expired at now, oldest first.
	ListOpen(ctx context.Context, now time.Time, limit int) ([]*payment.Request, error)
	// MarkCompleted reports false when the request was no longer pending.
	MarkCompleted(ctx context.Context, reference, signature string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, reference string, at time.Time) (bool, error)
}

// TransactionRepository defines the contract for settlement data access
type TransactionRepository interface {
	// Upsert inserts t unless its signature exists, and returns the stored row.
	Upsert(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error)
	FindBySignature(ctx context.Context, signature string) (*transaction.Transaction, error)
	List(ctx context.Context, f ListFilter) ([]*transaction.Transaction, error)
}

// InvoiceRepository defines the contract for invoice data access
type InvoiceRepository interface {
	Create(ctx context.Context, inv *invoice.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	FindByPaymentReference(ctx context.Context, reference string) (*invoice.Invoice, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*invoice.Invoice, error)
	UpdateStatus(ctx context.Context, inv *invoice.Invoice) error
}

// EventRepository defines the contract for webhook event data access
type EventRepository interface {
	Save(ctx context.Context, e *webhook.Event) error
	FindByReference(ctx context.Context, reference string) ([]*webhook.Event, error)
	FindUnprocessed(ctx context.Context, limit int) ([]*webhook.Event, error)
	MarkProcessed(ctx context.Context, id int64, status webhook.ProcessingStatus) error
}

// CurrencyVolume aggregates settled transactions in one currency.
type CurrencyVolume struct {
	Currency fee.Currency    `json:"currency"`
	Count    int64           `json:"count"`
	Gross    decimal.Decimal `json:"grossVolume"`
	Fees     decimal.Decimal `json:"platformFees"`
	Net      decimal.Decimal `json:"netVolume"`
}

// Metrics summarizes a merchant's activity; an empty user id covers everyone.
type Metrics struct {
	RequestsByStatus map[payment.Status]int64 `json:"requestsByStatus"`
	Volume           []CurrencyVolume         `json:"volume"`
}

type MetricsRepository interface {
	Metrics(ctx context.Context, userID string) (*Metrics, error)
}

// UnitOfWork defines transactional operations
type UnitOfWork interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction defines a database transaction
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	PaymentRequests() PaymentRequestRepository
	Transactions() TransactionRepository
	Invoices() InvoiceRepository
	Events() EventRepository
}
