package payment

import (
	"context"
	"errors"

	"afripay/internal/domain/payment"
	"afripay/internal/domain/webhook"
	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"
)

// Status polls the chain for the oldest transaction carrying reference. It
// does not require a stored request.
func (s *Service) Status(ctx context.Context, reference string) (*StatusResult, error) {
	ref, err := solanapay.ParsePublicKey(reference)
	if err != nil {
		return nil, svcerr.Invalid("reference", "must be a valid Solana public key")
	}
	m, err := s.chain.FindReference(ctx, ref)
	if err != nil {
		return nil, svcerr.Wrap("status", err)
	}
	if m == nil {
		return &StatusResult{Reference: reference, Status: string(payment.StatusPending), Confirmed: false}, nil
	}
	return &StatusResult{Reference: reference, Status: m.Status, Confirmed: m.Confirmed, Signature: m.Signature}, nil
}

// Cancel moves a pending request to cancelled. Cancelling twice succeeds;
// cancelling a completed request is a conflict.
func (s *Service) Cancel(ctx context.Context, reference string) (*payment.Request, error) {
	req, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	if req.Status == payment.StatusCancelled {
		return req, nil
	}

	now := s.now()
	if err := req.Cancel(now); err != nil {
		return nil, conflictFor(err)
	}

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, svcerr.Wrap("cancel", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := tx.PaymentRequests().MarkCancelled(ctx, reference, now)
	if err != nil {
		return nil, svcerr.Wrap("cancel", err)
	}
	if !ok {
		// lost a race with verify or another cancel
		current, err := tx.PaymentRequests().FindByReference(ctx, reference)
		if err != nil {
			return nil, svcerr.Wrap("cancel", err)
		}
		if current.Status == payment.StatusCancelled {
			return current, nil
		}
		return nil, &svcerr.ConflictError{Message: "payment request is already " + string(current.Status)}
	}

	if err := saveEvent(ctx, tx.Events(), webhook.TypePaymentCancelled, reference, req.UserID, req); err != nil {
		return nil, svcerr.Wrap("cancel", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, svcerr.Wrap("cancel", err)
	}
	return req, nil
}

// OpenRequests lists pending, unexpired requests for the reconcile worker.
func (s *Service) OpenRequests(ctx context.Context, limit int) ([]*payment.Request, error) {
	reqs, err := s.requests.ListOpen(ctx, s.now(), limit)
	return reqs, svcerr.Wrap("open_requests", err)
}

func conflictFor(err error) error {
	var te *payment.TransitionError
	if errors.As(err, &te) {
		return &svcerr.ConflictError{Message: "payment request is already " + string(te.From)}
	}
	return err
}
