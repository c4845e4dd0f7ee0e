package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrClosed is returned for any use of a closed Connection.
	ErrClosed = errors.New("database: connection closed")

	// ErrNoDispatcher is returned by Open when the context carries no
	// owning dispatcher.
	ErrNoDispatcher = errors.New("database: no dispatcher in context")

	// ErrOpenFailed matches an *EngineError raised while opening.
	ErrOpenFailed = errors.New("database: open failed")

	// ErrEngine matches every other *EngineError.
	ErrEngine = errors.New("database: engine call failed")

	// ErrReadOnly is returned inside WithReadOnly for a statement that
	// would change the database.
	ErrReadOnly = errors.New("database: statement is not read-only")

	// ErrMigrationNotFound is returned by MigrateDown when the latest
	// applied version has no file.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration is returned by MigrateDown when the latest
	// migration has no down SQL.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)

// EngineError carries the SQLite result code of a failed engine call.
type EngineError struct {
	Op   string
	Code sqlite3.ErrNo
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("database: %s: %s", e.Op, e.Code.Error())
	}
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports ErrOpenFailed for open errors and ErrEngine otherwise.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrOpenFailed:
		return e.Op == opOpen
	case ErrEngine:
		return e.Op != opOpen
	}
	return false
}

// engineError wraps err, taking the result code from the driver error when
// it has one.
func engineError(op string, err error) *EngineError {
	code := sqlite3.ErrError
	var se sqlite3.Error
	if errors.As(err, &se) {
		code = se.Code
	}
	return &EngineError{Op: op, Code: code, Err: err}
}

// engineMessage returns the engine's diagnostic text for err.
func engineMessage(err error) string {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}
