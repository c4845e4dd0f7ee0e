package statement

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nerrad567/loopdb/internal/params"
)

// Dispatcher receives row callbacks from Each.
type Dispatcher interface {
	Post(fn func()) error
}

// Statement is one compiled, parameter-bound SQL statement.
type Statement struct {
	conn   *sqlx.Conn
	query  string
	stmt   *sqlx.Stmt
	args   []any
	closed bool
}

// Prepare compiles query on conn.
func Prepare(ctx context.Context, conn *sqlx.Conn, query string) (*Statement, error) {
	stmt, err := conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	return &Statement{conn: conn, query: query, stmt: stmt}, nil
}

// Bind attaches p to the statement. Binding replaces any earlier binding.
func (s *Statement) Bind(ctx context.Context, p params.Container) error {
	if s.closed {
		return ErrClosed
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}

	switch p.Kind() {
	case params.KindNone:
		s.args = nil
	case params.KindPositional:
		s.args = p.Values()
	case params.KindNamed:
		query, args, err := bindNamed(s.query, p.Map())
		if err != nil {
			return err
		}
		if err := s.recompile(ctx, query); err != nil {
			return err
		}
		s.args = args
	}
	return nil
}

// recompile swaps the prepared statement for one compiled from query.
func (s *Statement) recompile(ctx context.Context, query string) error {
	stmt, err := s.conn.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompile, err)
	}
	_ = s.stmt.Close()
	s.stmt = stmt
	return nil
}

// Run executes a statement that returns no rows.
func (s *Statement) Run(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if _, err := s.stmt.ExecContext(ctx, s.args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecute, err)
	}
	return nil
}

// One returns the first result row as a JSON object, or "" when the
// statement produces no rows.
func (s *Statement) One(ctx context.Context) (string, error) {
	var out string
	first := true
	err := s.scan(ctx, func(cols []string, vals []any) (bool, error) {
		row, err := encodeRow(cols, vals)
		if err != nil {
			return false, err
		}
		out = row
		first = false
		return false, nil
	})
	if err != nil {
		return "", err
	}
	if first {
		return "", nil
	}
	return out, nil
}

// All returns every result row as a JSON array of objects.
func (s *Statement) All(ctx context.Context) (string, error) {
	w := newArrayWriter()
	defer w.release()

	err := s.scan(ctx, func(cols []string, vals []any) (bool, error) {
		return true, w.add(cols, vals)
	})
	if err != nil {
		return "", err
	}
	return w.finish()
}

// Each serializes every row on the calling goroutine and posts onRow with
// that row to d. onRow never runs on the calling goroutine.
func (s *Statement) Each(ctx context.Context, onRow func(row string), d Dispatcher) error {
	return s.scan(ctx, func(cols []string, vals []any) (bool, error) {
		row, err := encodeRow(cols, vals)
		if err != nil {
			return false, err
		}
		if err := d.Post(func() { onRow(row) }); err != nil {
			return false, fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return true, nil
	})
}

// scan steps the statement, handing each row to fn until fn returns false.
func (s *Statement) scan(ctx context.Context, fn func(cols []string, vals []any) (bool, error)) error {
	if s.closed {
		return ErrClosed
	}

	rows, err := s.stmt.QueryxContext(ctx, s.args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecute, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecute, err)
	}

	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecute, err)
		}
		more, err := fn(cols, vals)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrExecute, err)
	}
	return nil
}

// Close finalizes the statement. It is safe to call more than once.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stmt.Close()
}
