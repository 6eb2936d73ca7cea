package payment

import (
	"context"
	"sync"
	"time"

	"afripay/internal/config"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/fee"
	"afripay/internal/services/validate"
	"afripay/internal/solanapay"
	"afripay/internal/store/repositories"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Chain is the on-chain surface the service needs; *solanapay.Client implements it.
type Chain interface {
	FindReference(ctx context.Context, reference solana.PublicKey) (*solanapay.Match, error)
	InspectTransfer(ctx context.Context, sig solana.Signature, q solanapay.TransferQuery) (*solanapay.Transfer, error)
	BuildTransfer(ctx context.Context, p solanapay.TransferParams) (string, error)
	Balance(ctx context.Context, wallet solana.PublicKey, cur fee.Currency) (decimal.Decimal, error)
	USDCMint() solana.PublicKey
	Network() string
}

// Notifier sends customer mail; *email.Sender implements it.
type Notifier interface {
	SendPaymentRequest(ctx context.Context, r *payment.Request) error
	SendReceipt(ctx context.Context, r *payment.Request, tx *transaction.Transaction, network string) error
}

// Options are the process-wide presentation and routing settings.
type Options struct {
	Label     string
	IconURL   string
	QRBaseURL string
	// PlatformWallet receives the fee in transaction requests; nil sends the
	// whole total to the merchant.
	PlatformWallet *solana.PublicKey
}

// OptionsFromConfig parses the platform wallet, if any.
func OptionsFromConfig(cfg config.FeeCfg) (Options, error) {
	o := Options{Label: cfg.Label, IconURL: cfg.IconURL, QRBaseURL: cfg.QRBaseURL}
	if cfg.PlatformWallet != "" {
		pk, err := solanapay.ParsePublicKey(cfg.PlatformWallet)
		if err != nil {
			return Options{}, err
		}
		o.PlatformWallet = &pk
	}
	return o, nil
}

// Service handles payment request business logic
type Service struct {
	requests     repositories.PaymentRequestRepository
	transactions repositories.TransactionRepository
	uow          repositories.UnitOfWork
	chain        Chain
	calc         *fee.Calculator
	notifier     Notifier
	opts         Options
	validate     *validator.Validate
	now          func() time.Time

	bg sync.WaitGroup
}

// NewService creates a new payment service. notifier may be nil.
func NewService(
	requests repositories.PaymentRequestRepository,
	transactions repositories.TransactionRepository,
	uow repositories.UnitOfWork,
	chain Chain,
	calc *fee.Calculator,
	notifier Notifier,
	opts Options,
) *Service {
	return &Service{
		requests:     requests,
		transactions: transactions,
		uow:          uow,
		chain:        chain,
		calc:         calc,
		notifier:     notifier,
		opts:         opts,
		validate:     validate.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Calculator exposes the fee calculator for quotes.
func (s *Service) Calculator() *fee.Calculator { return s.calc }

// Wait blocks until background notifications finish.
func (s *Service) Wait() { s.bg.Wait() }

// background runs fn detached from the request lifetime. Failures are logged
// and never reach the caller.
func (s *Service) background(op string, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("op", op).Msg("background task failed")
		}
	}()
}
