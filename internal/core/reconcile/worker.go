package reconcile

import (
	"context"
	"errors"
	"time"

	"afripay/internal/domain/payment"
	paymentsvc "afripay/internal/services/payment"
	"afripay/internal/services/svcerr"

	"github.com/rs/zerolog/log"
)

// Payments is what the worker drives; *payment.Service implements it.
type Payments interface {
	OpenRequests(ctx context.Context, limit int) ([]*payment.Request, error)
	Status(ctx context.Context, reference string) (*paymentsvc.StatusResult, error)
	Verify(ctx context.Context, signature, reference string) (*paymentsvc.VerifyResult, error)
}

// Worker settles open payment requests whose reference shows up on chain
// without the client calling verify.
type Worker struct {
	payments  Payments
	pollEvery time.Duration
	batch     int
}

func NewWorker(payments Payments, pollEvery time.Duration, batch int) *Worker {
	if pollEvery <= 0 {
		pollEvery = 15 * time.Second
	}
	if batch <= 0 {
		batch = 25
	}
	return &Worker{payments: payments, pollEvery: pollEvery, batch: batch}
}

func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("poll_every", w.pollEvery).Int("batch_size", w.batch).Msg("reconcile worker: started")
	t := time.NewTicker(w.pollEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile worker: stopping")
			return
		case <-t.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce checks one batch of open requests and returns how many it settled.
func (w *Worker) RunOnce(ctx context.Context) int {
	reqs, err := w.payments.OpenRequests(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("reconcile worker: fetch open requests failed")
		return 0
	}
	settled := 0
	for _, r := range reqs {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.handleOne(ctx, r)
		if err != nil {
			// the request stays pending and is retried next tick
			log.Warn().Err(err).Str("reference", r.Reference).Msg("reconcile worker: settle failed")
			continue
		}
		if ok {
			settled++
		}
	}
	if settled > 0 {
		log.Info().Int("settled", settled).Int("checked", len(reqs)).Msg("reconcile worker: batch done")
	}
	return settled
}

func (w *Worker) handleOne(ctx context.Context, r *payment.Request) (bool, error) {
	st, err := w.payments.Status(ctx, r.Reference)
	if err != nil {
		return false, err
	}
	if st.Signature == "" || st.Status == "failed" {
		return false, nil
	}
	if _, err := w.payments.Verify(ctx, st.Signature, r.Reference); err != nil {
		var ce *svcerr.ChainError
		if errors.As(err, &ce) && ce.Code == svcerr.CodeNotConfirmed {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
