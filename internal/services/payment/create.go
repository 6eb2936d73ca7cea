package payment

import (
	"context"
	"errors"
	"strings"

	"afripay/internal/domain/payment"
	"afripay/internal/domain/webhook"
	"afripay/internal/fee"
	"afripay/internal/services/svcerr"
	"afripay/internal/services/validate"
	"afripay/internal/solanapay"
	"afripay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Create validates in, persists a pending request carrying the computed fee,
// and returns the Solana Pay URL for it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := validate.Struct(s.validate, in); err != nil {
		return nil, err
	}
	cur, err := fee.ParseCurrency(in.Currency)
	if err != nil {
		return nil, svcerr.Invalid("currency", "must be USDC or SOL")
	}
	if in.Amount.LessThan(fee.MinAmount) {
		return nil, svcerr.Invalid("amount", "must be at least "+fee.MinAmount.String())
	}

	q, err := s.calc.Quote(in.Amount, cur)
	if err != nil {
		return nil, svcerr.Invalid("amount", err.Error())
	}

	now := s.now()
	req, err := payment.NewRequest(strings.TrimSpace(in.UserID), strings.TrimSpace(in.RecipientWallet), q, now)
	if err != nil {
		return nil, svcerr.Invalid("recipientWallet", err.Error())
	}
	req.Reference = solanapay.NewReference().String()
	req.Label = firstNonEmpty(in.Label, s.opts.Label)
	req.Message = firstNonEmpty(in.Message, in.Description)
	req.Memo = in.Memo
	req.Description = in.Description
	req.CustomerEmail = strings.TrimSpace(in.CustomerEmail)

	details := s.attachURLs(req)

	if err := s.persistNew(ctx, req); err != nil {
		return nil, err
	}

	log.Info().
		Str("reference", req.Reference).
		Str("user_id", req.UserID).
		Str("amount", req.Amount.String()).
		Str("fee", req.Fee.String()).
		Str("currency", string(req.Currency)).
		Msg("payment request created")

	if req.CustomerEmail != "" && s.notifier != nil && !in.SkipEmail {
		s.background("payment_request_email", func(ctx context.Context) error {
			return s.notifier.SendPaymentRequest(ctx, req)
		})
	}

	return &CreateResult{PaymentRequest: req, FeeBreakdown: q, TransactionDetails: details}, nil
}

// attachURLs fills the transfer-request and QR URLs.
func (s *Service) attachURLs(req *payment.Request) TransactionDetails {
	var splToken string
	if req.Currency == fee.USDC {
		splToken = s.chain.USDCMint().String()
	}
	req.PaymentURL = solanapay.EncodeURL(solanapay.TransferRequest{
		Recipient: req.Recipient,
		Amount:    req.Total,
		SPLToken:  splToken,
		Reference: req.Reference,
		Label:     req.Label,
		Message:   req.Message,
		Memo:      req.Memo,
	})
	req.QRCodeURL = solanapay.QRCodeURL(s.opts.QRBaseURL, req.PaymentURL)

	return TransactionDetails{
		Reference:  req.Reference,
		PaymentURL: req.PaymentURL,
		QRCodeURL:  req.QRCodeURL,
		Recipient:  req.Recipient,
		SPLToken:   splToken,
		Network:    s.chain.Network(),
		ExpiresAt:  req.ExpiresAt,
	}
}

// persistNew stores req and its payment.created event atomically.
func (s *Service) persistNew(ctx context.Context, req *payment.Request) error {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return svcerr.Wrap("create", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.PaymentRequests().Create(ctx, req); err != nil {
		return svcerr.Wrap("create", err)
	}
	if err := saveEvent(ctx, tx.Events(), webhook.TypePaymentCreated, req.Reference, req.UserID, req); err != nil {
		return svcerr.Wrap("create", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return svcerr.Wrap("create", err)
	}
	return nil
}

// Get returns a stored request with its persisted fee breakdown.
func (s *Service) Get(ctx context.Context, reference string) (*RequestView, error) {
	req, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &RequestView{PaymentRequest: req, FeeBreakdown: breakdownOf(req), Expired: req.IsPending() && req.IsExpired(s.now())}, nil
}

// lookup validates the reference format before touching storage.
func (s *Service) lookup(ctx context.Context, reference string) (*payment.Request, error) {
	if _, err := solanapay.ParsePublicKey(reference); err != nil {
		return nil, svcerr.Invalid("reference", "must be a valid Solana public key")
	}
	req, err := s.requests.FindByReference(ctx, reference)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &svcerr.NotFoundError{Resource: "payment request", Key: reference}
	}
	if err != nil {
		return nil, svcerr.Wrap("lookup", err)
	}
	return req, nil
}

func saveEvent(ctx context.Context, repo repositories.EventRepository, t webhook.Type, reference, userID string, payload any) error {
	e, err := webhook.NewEvent(t, reference, userID, payload)
	if err != nil {
		return err
	}
	return repo.Save(ctx, e)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
