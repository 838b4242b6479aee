package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/huddle/libs/db"
	otelx "github.com/md-rashed-zaman/huddle/libs/otel"
)

// Repository runs against a pool or a transaction, whichever the caller passes.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q db.Querier, evts ...Event) error {
	tc := otelx.CurrentTraceContext(ctx)
	for _, evt := range evts {
		_, err := q.Exec(ctx, `
			INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.NewString(), evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Parent, tc.State)
		if err != nil {
			return err
		}
	}
	return nil
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

func (r *Repository) FetchUnpublished(ctx context.Context, q db.Querier, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, q db.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// Prune deletes events published before cutoff and reports how many went.
func (r *Repository) Prune(ctx context.Context, q db.Querier, cutoff time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM outbox_events
		WHERE published_at IS NOT NULL AND published_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
