package event

import (
	"context"
	"encoding/json"

	"afripay/internal/domain/webhook"
	"afripay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// ChannelPrefix namespaces every published channel.
const ChannelPrefix = "afripay:events:"

// Publisher delivers one message to a channel; *redis.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// Processor publishes stored lifecycle events and records the outcome
type Processor struct {
	eventRepo repositories.EventRepository
	publisher Publisher
}

// NewProcessor creates a new event processor
func NewProcessor(eventRepo repositories.EventRepository, publisher Publisher) *Processor {
	return &Processor{eventRepo: eventRepo, publisher: publisher}
}

// Channels lists where evt goes: one channel per type and, when the event
// belongs to a merchant, one per merchant.
func Channels(evt *webhook.Event) []string {
	out := []string{ChannelPrefix + string(evt.Type)}
	if evt.UserID != "" {
		out = append(out, ChannelPrefix+"user:"+evt.UserID)
	}
	return out
}

// ProcessEvent publishes evt. A publish error leaves the event pending so the
// next batch retries it; an event that cannot be encoded is marked failed.
func (p *Processor) ProcessEvent(ctx context.Context, evt *webhook.Event) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Int64("event_id", evt.ID).Msg("failed to encode event")
		return p.markEventProcessed(ctx, evt, webhook.ProcessingFailed)
	}
	for _, ch := range Channels(evt) {
		if _, err := p.publisher.Publish(ctx, ch, msg); err != nil {
			return err
		}
	}
	return p.markEventProcessed(ctx, evt, webhook.ProcessingCompleted)
}

func (p *Processor) markEventProcessed(ctx context.Context, evt *webhook.Event, status webhook.ProcessingStatus) error {
	if err := p.eventRepo.MarkProcessed(ctx, evt.ID, status); err != nil {
		return err
	}
	evt.ProcessingStatus = status
	return nil
}
