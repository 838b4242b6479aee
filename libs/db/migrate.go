package db

import (
	"context"
	"fmt"
)

// Migrate applies an idempotent schema script (CREATE ... IF NOT EXISTS) in one
// transaction. Statements run through the simple protocol, so the script may hold
// several statements.
func Migrate(ctx context.Context, pool *Pool, schema string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit(ctx)
}
