package event

import (
	"context"
	"time"

	"afripay/internal/domain/webhook"
	"afripay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Worker drains the event outbox in the background
type Worker struct {
	eventRepo repositories.EventRepository
	processor *Processor
	pollEvery time.Duration
	batchSize int
}

// NewWorker creates a new outbox worker
func NewWorker(
	eventRepo repositories.EventRepository,
	processor *Processor,
	pollEvery time.Duration,
	batchSize int,
) *Worker {
	if pollEvery == 0 {
		pollEvery = 2 * time.Second
	}
	if batchSize == 0 {
		batchSize = 50
	}

	return &Worker{
		eventRepo: eventRepo,
		processor: processor,
		pollEvery: pollEvery,
		batchSize: batchSize,
	}
}

// Run starts the worker and processes events until context is cancelled
func (w *Worker) Run(ctx context.Context) {
	log.Info().
		Dur("poll_every", w.pollEvery).
		Int("batch_size", w.batchSize).
		Msg("event outbox worker started")

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event outbox worker stopping")
			return
		case <-ticker.C:
			if err := w.processNextBatch(ctx); err != nil {
				log.Error().Err(err).Msg("error processing event batch")
			}
		}
	}
}

// processNextBatch fetches and publishes the next batch of unprocessed events
func (w *Worker) processNextBatch(ctx context.Context) error {
	events, err := w.eventRepo.FindUnprocessed(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	log.Debug().Int("count", len(events)).Msg("processing event batch")

	for _, evt := range events {
		if err := w.processEvent(ctx, evt); err != nil {
			// keep going; the failed event stays pending
			continue
		}
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, evt *webhook.Event) error {
	start := time.Now()
	err := w.processor.ProcessEvent(ctx, evt)
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Int64("event_id", evt.ID).
			Str("type", string(evt.Type)).
			Str("reference", evt.Reference).
			Dur("duration", duration).
			Msg("event publish failed")
		return err
	}

	log.Debug().
		Int64("event_id", evt.ID).
		Str("type", string(evt.Type)).
		Str("reference", evt.Reference).
		Dur("duration", duration).
		Msg("event published")
	return nil
}
