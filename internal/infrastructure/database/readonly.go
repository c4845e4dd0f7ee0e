package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/loopdb/internal/statement"
)

// sqliteRecursive is SQLITE_RECURSIVE, which the driver does not export.
const sqliteRecursive = 33

// Pragmas that take an argument but only report.
var queryPragmas = map[string]bool{
	"table_info":        true,
	"table_xinfo":       true,
	"table_list":        true,
	"index_info":        true,
	"index_xinfo":       true,
	"index_list":        true,
	"foreign_key_list":  true,
	"foreign_key_check": true,
	"integrity_check":   true,
	"quick_check":       true,
}

// Pragmas that act even without an argument.
var actionPragmas = map[string]bool{
	"optimize":           true,
	"wal_checkpoint":     true,
	"incremental_vacuum": true,
	"shrink_memory":      true,
}

// WithReadOnly runs fn with every execution call restricted to statements
// that neither write the database nor change connection state. Rejected
// calls fail with ErrReadOnly or a compile error and are recorded as the
// last error like any other failure.
func (c *Connection) WithReadOnly(fn func() error) error {
	prev := c.readOnly.Swap(true)
	defer c.readOnly.Store(prev)
	return fn()
}

// authorize is the SQLite authorizer. It allows everything unless a
// WithReadOnly call is in progress.
func (c *Connection) authorize(op int, arg1, arg2, _ string) int {
	if !c.readOnly.Load() {
		return sqlite3.SQLITE_OK
	}
	switch op {
	case sqlite3.SQLITE_SELECT, sqlite3.SQLITE_READ, sqlite3.SQLITE_FUNCTION, sqliteRecursive:
		return sqlite3.SQLITE_OK
	case sqlite3.SQLITE_PRAGMA:
		if queryPragmas[arg1] || (arg2 == "" && !actionPragmas[arg1]) {
			return sqlite3.SQLITE_OK
		}
	}
	return sqlite3.SQLITE_DENY
}

// checkReadOnly compiles query and rejects it unless SQLite reports it
// makes no direct change to the database. The authorizer does not see
// statements such as VACUUM.
func checkReadOnly(conn *sqlx.Conn, query string) error {
	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("%w: unexpected driver connection %T", ErrReadOnly, driverConn)
		}
		ds, err := sc.Prepare(query)
		if err != nil {
			return fmt.Errorf("%w: %w", statement.ErrCompile, err)
		}
		defer ds.Close() //nolint:errcheck // finalize of an unexecuted statement

		if st, ok := ds.(*sqlite3.SQLiteStmt); !ok || !st.Readonly() {
			return ErrReadOnly
		}
		return nil
	})
}
