package postgres

import (
	"context"

	"afripay/internal/domain/webhook"
	"afripay/internal/store/repositories"

	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, event_type, reference, user_id, payload_json, processing_status, received_at, processed_at`

// eventRepository implements EventRepository with pure data access
type eventRepository struct {
	db querier
}

func NewEventRepository(db querier) repositories.EventRepository {
	return &eventRepository{db: db}
}

// Save upserts by (event_type, reference) so a replayed state change records
// one event.
func (r *eventRepository) Save(ctx context.Context, e *webhook.Event) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO webhook_events (event_type, reference, user_id, payload_json, processing_status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_type, reference) DO UPDATE SET
		    payload_json = EXCLUDED.payload_json,
		    user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), webhook_events.user_id)
		RETURNING id`,
		string(e.Type), e.Reference, e.UserID, []byte(e.Payload), string(e.ProcessingStatus), e.ReceivedAt).Scan(&e.ID)
}

func (r *eventRepository) FindByReference(ctx context.Context, reference string) ([]*webhook.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE reference = $1
		ORDER BY received_at ASC`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *eventRepository) FindUnprocessed(ctx context.Context, limit int) ([]*webhook.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE processing_status = 'pending'
		ORDER BY received_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *eventRepository) MarkProcessed(ctx context.Context, id int64, status webhook.ProcessingStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE webhook_events
		SET processing_status = $1, processed_at = now()
		WHERE id = $2`, string(status), id)
	return err
}

func scanEvents(rows pgx.Rows) ([]*webhook.Event, error) {
	out := []*webhook.Event{}
	for rows.Next() {
		var e webhook.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Reference, &e.UserID, &payload, &e.ProcessingStatus, &e.ReceivedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, &e)
	}
	return out, rows.Err()
}
