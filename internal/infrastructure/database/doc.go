// Package database provides the loopdb Connection: one SQLite handle
// confined to the goroutine that uses it, with change notifications
// delivered on an event loop.
//
// This package manages:
//   - Opening and closing the single native handle
//   - The WINLOCALE collation and APPTRANSLATE function hooks
//   - The Run, One, All and Each execution pipeline
//   - Row-change dispatch onto the owning dispatcher
//   - Schema migrations read from an fs.FS
//
// Threading:
//
// Open must be called with a context carrying the owning dispatcher,
// normally from a function running on that loop:
//
//	err := loop.Do(ctx, func() {
//	    conn, err = database.Open(eventloop.WithDispatcher(ctx, loop), cfg)
//	})
//
// SQLite invokes the update hook synchronously on the goroutine executing
// the write. The hook only posts work to the dispatcher; listeners never
// run on the writing goroutine. The post happens before the execution
// call returns, but delivery is not ordered against that return.
//
// Bulk operations should suppress notifications to avoid exhausting the
// dispatcher queue:
//
//	err := conn.WithEventsSuppressed(func() error {
//	    return conn.Run(ctx, "DELETE FROM audit_log", params.None())
//	})
//
// Vacuum and the migration runner do this themselves.
//
// Errors:
//
// Engine failures carry the SQLite result code in *EngineError. The
// execution methods return statement errors (statement.ErrCompile,
// ErrBind, ErrExecute) wrapping the driver error, and record the engine
// message for LastError before returning.
package database
