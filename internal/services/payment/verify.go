package payment

import (
	"context"
	"errors"
	"time"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"
	"afripay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Verify reconciles a claimed on-chain signature against the stored request
// for reference. The stored request is looked up before any RPC call, and
// fee and net always come from it.
func (s *Service) Verify(ctx context.Context, signature, reference string) (*VerifyResult, error) {
	sig, err := solanapay.ParseSignature(signature)
	if err != nil {
		return nil, svcerr.Invalid("signature", "must be a valid transaction signature")
	}
	req, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case payment.StatusCancelled:
		return nil, &svcerr.ConflictError{Message: "payment request was cancelled"}
	case payment.StatusCompleted:
		return s.replay(ctx, req, signature)
	}

	ref, _ := solanapay.ParsePublicKey(req.Reference)
	recipient, err := solanapay.ParsePublicKey(req.Recipient)
	if err != nil {
		return nil, svcerr.Wrap("verify", err)
	}

	t, err := s.chain.InspectTransfer(ctx, sig, solanapay.TransferQuery{Recipient: recipient, Reference: ref, Currency: req.Currency})
	if errors.Is(err, solanapay.ErrTransactionNotFound) {
		return nil, &svcerr.ChainError{Code: svcerr.CodeNotConfirmed, Message: "transaction not found or not confirmed"}
	}
	if err != nil {
		return nil, svcerr.Wrap("verify", err)
	}
	switch {
	case t.Failed:
		return nil, &svcerr.ChainError{Code: svcerr.CodeNotConfirmed, Message: "transaction failed on chain"}
	case !t.HasReference:
		return nil, &svcerr.ChainError{Code: svcerr.CodeReferenceMismatch, Message: "transaction does not carry the payment reference"}
	case t.Received.LessThan(req.Amount):
		return nil, &svcerr.ChainError{
			Code:    svcerr.CodeUnderpaid,
			Message: "recipient received " + t.Received.String() + " " + string(req.Currency) + ", expected at least " + req.Amount.String(),
		}
	}

	record := transaction.New(req.Reference, req.ID, req.UserID, signature, req.Total, req.Fee, req.Currency)
	record.SenderWallet = t.Sender
	record.RecipientWallet = req.Recipient
	record.Slot = t.Slot
	record.BlockTime = t.BlockTime

	stored, fresh, err := s.settle(ctx, req, record)
	if err != nil {
		return nil, err
	}

	if fresh {
		log.Info().
			Str("reference", req.Reference).
			Str("signature", signature).
			Str("gross", stored.GrossAmount.String()).
			Str("fee", stored.PlatformFee.String()).
			Msg("payment verified")

		// Only the recipient leg is measured. A transfer without the fee
		// leg still records the quoted gross.
		if t.Received.LessThan(req.Total) {
			log.Warn().
				Str("reference", req.Reference).
				Str("signature", signature).
				Str("received", t.Received.String()).
				Str("gross", stored.GrossAmount.String()).
				Msg("recipient received less than the recorded gross; fee leg not observed")
		}

		if req.CustomerEmail != "" && s.notifier != nil {
			s.background("receipt_email", func(ctx context.Context) error {
				return s.notifier.SendReceipt(ctx, req, stored, s.chain.Network())
			})
		}
	}

	return &VerifyResult{Transaction: stored, PlatformFee: stored.PlatformFee, NetAmount: stored.NetAmount, PaymentRequest: req}, nil
}

// settle writes the transaction, completes the request, records events and
// marks any linked invoice paid in one unit of work. fresh is false when a
// concurrent verify of the same signature got there first.
func (s *Service) settle(ctx context.Context, req *payment.Request, record *transaction.Transaction) (*transaction.Transaction, bool, error) {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored, err := tx.Transactions().Upsert(ctx, record)
	if err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}
	if stored.Reference != req.Reference {
		return nil, false, &svcerr.ConflictError{Message: "signature already settles another payment request"}
	}

	now := s.now()
	ok, err := tx.PaymentRequests().MarkCompleted(ctx, req.Reference, record.Signature, now)
	if err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}
	if !ok {
		current, err := tx.PaymentRequests().FindByReference(ctx, req.Reference)
		if err != nil {
			return nil, false, svcerr.Wrap("verify", err)
		}
		if current.Status == payment.StatusCompleted && current.Signature == record.Signature {
			*req = *current
			return stored, false, nil
		}
		return nil, false, &svcerr.ConflictError{Message: "payment request is already " + string(current.Status)}
	}
	if err := req.Complete(record.Signature, now); err != nil {
		return nil, false, conflictFor(err)
	}

	if err := saveEvent(ctx, tx.Events(), webhook.TypePaymentCompleted, req.Reference, req.UserID, stored); err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}
	if err := markInvoicePaid(ctx, tx, req.Reference, now); err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, svcerr.Wrap("verify", err)
	}
	return stored, true, nil
}

// replay answers a verify for an already completed request without touching
// the chain.
func (s *Service) replay(ctx context.Context, req *payment.Request, signature string) (*VerifyResult, error) {
	if req.Signature != signature {
		return nil, &svcerr.ConflictError{Message: "payment request was settled by a different transaction"}
	}
	stored, err := s.transactions.FindBySignature(ctx, signature)
	if err != nil {
		return nil, svcerr.Wrap("verify", err)
	}
	return &VerifyResult{Transaction: stored, PlatformFee: stored.PlatformFee, NetAmount: stored.NetAmount, PaymentRequest: req}, nil
}

func markInvoicePaid(ctx context.Context, tx repositories.Transaction, reference string, now time.Time) error {
	inv, err := tx.Invoices().FindByPaymentReference(ctx, reference)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if inv.Status == invoice.StatusPaid || inv.Status == invoice.StatusCancelled {
		return nil
	}
	if err := inv.MarkPaid(now); err != nil {
		return err
	}
	if err := tx.Invoices().UpdateStatus(ctx, inv); err != nil {
		return err
	}
	return saveEvent(ctx, tx.Events(), webhook.TypeInvoicePaid, reference, inv.UserID, inv)
}
