package inbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/huddle/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record claims eventID. It returns false if the event was already seen.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, nil
	}
	return false, err
}

// Release forgets eventID so a redelivery is processed again.
func (r *Repository) Release(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID)
	return err
}
