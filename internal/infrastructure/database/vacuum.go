package database

import (
	"context"

	"github.com/nerrad567/loopdb/internal/params"
)

// Vacuum rebuilds the database file. Change notifications are off while it
// runs, since the rebuild rewrites rows without changing them; the previous
// setting is restored even when the vacuum fails.
func (c *Connection) Vacuum(ctx context.Context) error {
	return c.WithEventsSuppressed(func() error {
		return c.Run(ctx, "VACUUM", params.None())
	})
}
