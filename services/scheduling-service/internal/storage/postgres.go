package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/huddle/libs/db"
)

// PGStore is the Postgres Store.
type PGStore struct {
	pool *db.Pool
	queries
}

func NewPGStore(pool *db.Pool) *PGStore {
	return &PGStore{pool: pool, queries: queries{q: pool}}
}

func (s *PGStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewQueries(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queries runs statements against either the pool or an open transaction.
type queries struct {
	q db.Querier
}

// NewQueries runs the store's statements through q, typically an open pgx.Tx.
func NewQueries(q db.Querier) Queries {
	return queries{q: q}
}

// Querier is the pool or transaction the statements run through.
func (r queries) Querier() db.Querier { return r.q }

// QuerierOf returns the database handle behind q so that writes to other tables can
// join the same transaction. It reports false for stores not backed by Postgres.
func QuerierOf(q Queries) (db.Querier, bool) {
	h, ok := q.(interface{ Querier() db.Querier })
	if !ok {
		return nil, false
	}
	return h.Querier(), true
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), isMalformedID(err):
		return ErrNotFound
	case IsConflict(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

func expectOne(tag interface{ RowsAffected() int64 }, err error) error {
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
var _ Store = (*PGStore)(nil)
