package database

import (
	"context"
	"database/sql"
	"fmt"
)

// execer is the part of a transaction the migration runner needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// inTx runs fn in a transaction on the Connection's handle, committing when
// fn succeeds.
func (c *Connection) inTx(ctx context.Context, fn func(execer) error) error {
	conn, err := c.handle()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
