package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/loopdb/internal/collation"
	"github.com/nerrad567/loopdb/internal/translate"
)

// sharedCache is the process-wide shared-cache mode applied to every
// Connection opened after it changes.
var sharedCache atomic.Bool

// errSharedCacheOmitted is the cause reported when SQLite was built
// without shared-cache support.
var errSharedCacheOmitted = errors.New("shared cache is not compiled into this SQLite build")

// EnableSharedCache switches SQLite's shared-cache mode on or off for the
// whole process. Connections already open keep the mode they were opened
// with.
func EnableSharedCache(enable bool) error {
	if enable {
		if err := checkSharedCache(); err != nil {
			return err
		}
	}
	sharedCache.Store(enable)
	return nil
}

// SharedCacheEnabled reports the current process-wide shared-cache mode.
func SharedCacheEnabled() bool {
	return sharedCache.Load()
}

// checkSharedCache checks the linked SQLite's compile options for
// SQLITE_OMIT_SHARED_CACHE.
func checkSharedCache() error {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return engineError(opEnableSharedCache, err)
	}
	defer db.Close() //nolint:errcheck // In-memory check

	rows, err := db.Query("PRAGMA compile_options")
	if err != nil {
		return engineError(opEnableSharedCache, err)
	}
	defer rows.Close()

	for rows.Next() {
		var opt string
		if err := rows.Scan(&opt); err != nil {
			return engineError(opEnableSharedCache, err)
		}
		if opt == "OMIT_SHARED_CACHE" {
			return &EngineError{Op: opEnableSharedCache, Code: sqlite3.ErrMisuse, Err: errSharedCacheOmitted}
		}
	}
	if err := rows.Err(); err != nil {
		return engineError(opEnableSharedCache, err)
	}
	return nil
}

// registerHooks is the driver ConnectHook. It runs once, for the single
// native handle of the Connection.
func (c *Connection) registerHooks(sc *sqlite3.SQLiteConn) error {
	sc.RegisterUpdateHook(c.onRowChange)
	sc.RegisterAuthorizer(c.authorize)

	if err := sc.RegisterCollation(collation.Name, c.collate); err != nil {
		return fmt.Errorf("registering %s collation: %w", collation.Name, err)
	}

	// Variadic so a wrong argument count reaches Call instead of failing
	// to compile.
	if err := sc.RegisterFunc(translate.FuncName, c.translator.Call, false); err != nil {
		return fmt.Errorf("registering %s function: %w", translate.FuncName, err)
	}
	return nil
}

// callState tracks the execution call in progress so a hook can abort it.
type callState struct {
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	fault error
}

// raise records the first fault and interrupts the running statement.
func (s *callState) raise(err error) {
	s.mu.Lock()
	if s.fault == nil {
		s.fault = err
	}
	s.mu.Unlock()
	s.cancel(err)
}

func (s *callState) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

func (c *Connection) beginCall(cancel context.CancelCauseFunc) *callState {
	st := &callState{cancel: cancel}
	c.callMu.Lock()
	c.call = st
	c.callMu.Unlock()
	return st
}

func (c *Connection) endCall() {
	c.callMu.Lock()
	c.call = nil
	c.callMu.Unlock()
}

// collate is the WINLOCALE comparator. SQLite hands it UTF-8; the
// comparator transcodes and orders through its UTF-16 entry.
func (c *Connection) collate(a, b string) int {
	r, err := c.comparator.CompareUTF8(a, b)
	if err == nil {
		return r
	}

	c.callMu.Lock()
	st := c.call
	c.callMu.Unlock()

	if st != nil {
		st.raise(err)
	} else {
		c.getLogger().Warn("collation failed outside an execution call", "id", c.id, "error", err)
	}
	return 0
}
