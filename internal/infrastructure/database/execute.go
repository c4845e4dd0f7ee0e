package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nerrad567/loopdb/internal/params"
	"github.com/nerrad567/loopdb/internal/statement"
)

// Mode is the execution mode of a call.
type Mode int

const (
	// ModeRun executes without returning rows.
	ModeRun Mode = iota
	// ModeOne returns the first row.
	ModeOne
	// ModeAll returns every row.
	ModeAll
	// ModeEach streams rows to a callback.
	ModeEach
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeOne:
		return "one"
	case ModeAll:
		return "all"
	case ModeEach:
		return "each"
	default:
		return "unknown"
	}
}

// ExecutionObserver is told about every execution call and every row change
// the Connection sees. Implementations must not block.
type ExecutionObserver interface {
	ObserveExecution(mode Mode, elapsed time.Duration, err error)
	ObserveChange(kind ChangeKind, ev ChangeEvent)
}

// SetObserver installs obs. Nil removes the observer.
func (c *Connection) SetObserver(obs ExecutionObserver) {
	c.hooksMu.Lock()
	c.observer = obs
	c.hooksMu.Unlock()
}

func (c *Connection) getObserver() ExecutionObserver {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.observer
}

// Run executes query, discarding any rows.
func (c *Connection) Run(ctx context.Context, query string, p params.Container) error {
	return c.execute(ctx, ModeRun, query, p, func(ctx context.Context, s *statement.Statement) error {
		return s.Run(ctx)
	})
}

// One executes query and returns its first row as a JSON object, or ""
// when there is no row.
func (c *Connection) One(ctx context.Context, query string, p params.Container) (string, error) {
	var row string
	err := c.execute(ctx, ModeOne, query, p, func(ctx context.Context, s *statement.Statement) error {
		var err error
		row, err = s.One(ctx)
		return err
	})
	return row, err
}

// All executes query and returns its rows as a JSON array of objects.
func (c *Connection) All(ctx context.Context, query string, p params.Container) (string, error) {
	var rows string
	err := c.execute(ctx, ModeAll, query, p, func(ctx context.Context, s *statement.Statement) error {
		var err error
		rows, err = s.All(ctx)
		return err
	})
	return rows, err
}

// Each executes query and posts onRow, once per row in result order, to the
// Connection's dispatcher. Rows are read before Each returns; onRow runs
// later, on the dispatcher goroutine.
func (c *Connection) Each(ctx context.Context, query string, p params.Container, onRow func(row string)) error {
	return c.EachTo(ctx, query, p, c.dispatcher, onRow)
}

// EachTo is Each with the row callbacks posted to d instead of the
// Connection's dispatcher.
func (c *Connection) EachTo(ctx context.Context, query string, p params.Container,
	d statement.Dispatcher, onRow func(row string)) error {
	return c.execute(ctx, ModeEach, query, p, func(ctx context.Context, s *statement.Statement) error {
		return s.Each(ctx, onRow, d)
	})
}

// execute is the pipeline shared by every mode: compile, bind, execute,
// finalize. A failure overwrites the last-error text before it is returned.
func (c *Connection) execute(ctx context.Context, mode Mode, query string, p params.Container,
	fn func(context.Context, *statement.Statement) error) error {
	conn, err := c.handle()
	if err != nil {
		return err
	}

	start := time.Now()

	callCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	st := c.beginCall(cancel)
	defer c.endCall()

	if c.readOnly.Load() {
		err = checkReadOnly(conn, query)
	}
	if err == nil {
		err = runStatement(callCtx, conn, query, p, fn)
	}

	// A hook fault interrupts the statement; report the fault, not the
	// interruption.
	if fault := st.err(); fault != nil {
		err = fault
	}

	if err != nil {
		c.recordError(err)
		c.getLogger().Debug("statement failed",
			"id", c.id,
			"mode", mode.String(),
			"error", err,
		)
	}

	if obs := c.getObserver(); obs != nil {
		obs.ObserveExecution(mode, time.Since(start), err)
	}
	return err
}

func runStatement(ctx context.Context, conn *sqlx.Conn, query string, p params.Container,
	fn func(context.Context, *statement.Statement) error) error {
	s, err := statement.Prepare(ctx, conn, query)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck // Finalize errors repeat the step error

	if err := s.Bind(ctx, p); err != nil {
		return err
	}
	return fn(ctx, s)
}
