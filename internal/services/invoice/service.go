package invoice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/webhook"
	"afripay/internal/fee"
	paymentsvc "afripay/internal/services/payment"
	"afripay/internal/services/svcerr"
	"afripay/internal/services/validate"
	"afripay/internal/store/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Payments is the slice of the payment service invoices build on.
type Payments interface {
	Create(ctx context.Context, in paymentsvc.CreateInput) (*paymentsvc.CreateResult, error)
	Cancel(ctx context.Context, reference string) (*payment.Request, error)
}

// Notifier mails invoices; *email.Sender implements it.
type Notifier interface {
	SendInvoice(ctx context.Context, inv *invoice.Invoice, r *payment.Request) error
}

// Service handles invoice business logic
type Service struct {
	invoices repositories.InvoiceRepository
	uow      repositories.UnitOfWork
	payments Payments
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time

	bg sync.WaitGroup
}

// NewService creates a new invoice service. notifier may be nil.
func NewService(invoices repositories.InvoiceRepository, uow repositories.UnitOfWork, payments Payments, notifier Notifier) *Service {
	return &Service{
		invoices: invoices,
		uow:      uow,
		payments: payments,
		notifier: notifier,
		validate: validate.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until queued invoice emails finish.
func (s *Service) Wait() { s.bg.Wait() }

type ItemInput struct {
	Description string          `json:"description" validate:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type CreateInput struct {
	UserID          string      `json:"userId" validate:"required,max=128"`
	CustomerEmail   string      `json:"customerEmail" validate:"required,email"`
	CustomerName    string      `json:"customerName" validate:"max=200"`
	RecipientWallet string      `json:"recipientWallet" validate:"required,solana_pubkey"`
	Currency        string      `json:"currency" validate:"omitempty,oneof=USDC SOL usdc sol"`
	Items           []ItemInput `json:"items" validate:"required,min=1,max=100,dive"`
	DueDate         *time.Time  `json:"dueDate"`
	Notes           string      `json:"notes" validate:"max=1000"`
}

// Result pairs an invoice with the payment request that settles it.
type Result struct {
	Invoice        *invoice.Invoice `json:"invoice"`
	PaymentRequest *payment.Request `json:"paymentRequest,omitempty"`
}

// Create stores an invoice together with a backing payment request for its
// total. The customer receives one email carrying the payment link.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	if err := validate.Struct(s.validate, in); err != nil {
		return nil, err
	}
	cur, err := fee.ParseCurrency(in.Currency)
	if err != nil {
		return nil, svcerr.Invalid("currency", "must be USDC or SOL")
	}

	items := make([]invoice.Item, len(in.Items))
	for i, it := range in.Items {
		items[i] = invoice.Item{Description: strings.TrimSpace(it.Description), Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	now := s.now()
	inv, err := invoice.New(strings.TrimSpace(in.UserID), in.CustomerEmail, in.CustomerName, items, cur, now)
	if err != nil {
		return nil, svcerr.Invalid("items", err.Error())
	}
	inv.DueDate = in.DueDate
	inv.Notes = in.Notes

	created, err := s.payments.Create(ctx, paymentsvc.CreateInput{
		UserID:          inv.UserID,
		Amount:          inv.Amount,
		Currency:        string(cur),
		RecipientWallet: in.RecipientWallet,
		Description:     "Invoice " + inv.Number,
		Memo:            inv.Number,
		CustomerEmail:   inv.CustomerEmail,
		SkipEmail:       true,
	})
	if err != nil {
		return nil, err
	}
	req := created.PaymentRequest
	inv.PaymentReference = req.Reference
	if err := inv.MarkSent(now); err != nil {
		return nil, svcerr.Wrap("create_invoice", err)
	}

	if err := s.persist(ctx, inv); err != nil {
		// leave no payable orphan behind
		if _, cerr := s.payments.Cancel(context.WithoutCancel(ctx), req.Reference); cerr != nil {
			log.Warn().Err(cerr).Str("reference", req.Reference).Msg("could not cancel orphaned payment request")
		}
		return nil, err
	}

	log.Info().
		Str("invoice_id", inv.ID.String()).
		Str("number", inv.Number).
		Str("reference", req.Reference).
		Str("amount", inv.Amount.String()).
		Msg("invoice created")

	if s.notifier != nil {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := s.notifier.SendInvoice(ctx, inv, req); err != nil {
				log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("invoice email failed")
			}
		}()
	}

	return &Result{Invoice: inv, PaymentRequest: req}, nil
}

func (s *Service) persist(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return svcerr.Wrap("create_invoice", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.Invoices().Create(ctx, inv); err != nil {
		return svcerr.Wrap("create_invoice", err)
	}
	e, err := webhook.NewEvent(webhook.TypeInvoiceCreated, inv.PaymentReference, inv.UserID, inv)
	if err != nil {
		return svcerr.Wrap("create_invoice", err)
	}
	if err := tx.Events().Save(ctx, e); err != nil {
		return svcerr.Wrap("create_invoice", err)
	}
	return svcerr.Wrap("create_invoice", tx.Commit(ctx))
}

// Get loads one invoice by id.
func (s *Service) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, svcerr.Invalid("id", "must be a UUID")
	}
	inv, err := s.invoices.FindByID(ctx, uid)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &svcerr.NotFoundError{Resource: "invoice", Key: id}
	}
	if err != nil {
		return nil, svcerr.Wrap("get_invoice", err)
	}
	return inv, nil
}

// List returns a merchant's invoices, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*invoice.Invoice, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, svcerr.Invalid("userId", "is required")
	}
	invs, err := s.invoices.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, svcerr.Wrap("list_invoices", err)
	}
	return invs, nil
}

// Cancel voids an unpaid invoice and its payment request. A paid invoice
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case invoice.StatusCancelled:
		return inv, nil
	case invoice.StatusPaid:
		return nil, &svcerr.ConflictError{Message: "invoice is already paid"}
	}

	if inv.PaymentReference != "" {
		if _, err := s.payments.Cancel(ctx, inv.PaymentReference); err != nil {
			var ce *svcerr.ConflictError
			if errors.As(err, &ce) {
				return nil, &svcerr.ConflictError{Message: "invoice payment has already settled"}
			}
			return nil, err
		}
	}

	if err := inv.Cancel(s.now()); err != nil {
		return nil, &svcerr.ConflictError{Message: err.Error()}
	}
	if err := s.invoices.UpdateStatus(ctx, inv); err != nil {
		return nil, svcerr.Wrap("cancel_invoice", err)
	}
	return inv, nil
}
