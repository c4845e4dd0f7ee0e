package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/loopdb/internal/collation"
	"github.com/nerrad567/loopdb/internal/eventloop"
	"github.com/nerrad567/loopdb/internal/translate"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// driverName is the sqlx bind-type name for SQLite.
	driverName = "sqlite3"
)

// Engine operation names carried by EngineError.
const (
	opOpen              = "open"
	opEnableSharedCache = "enable_shared_cache"
	opAutocommit        = "autocommit"
	opLastInsertRowID   = "last_insert_rowid"
)

// Config contains connection options.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// CreateDirs creates the parent directory of Path if it is missing.
	CreateDirs bool

	// CollationLanguage is the initial WINLOCALE language override.
	// Empty means the ambient user locale.
	CollationLanguage string

	// Translator backs APPTRANSLATE. Nil means translate.Default().
	Translator *translate.Function

	// Logger receives diagnostics. Nil discards them.
	Logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connection owns one SQLite handle and the hooks registered on it.
//
// A Connection is confined to the goroutine that uses it: the execution
// methods and the state queries must not be called concurrently. The only
// work that crosses goroutines is change delivery, which is always posted
// to the dispatcher captured by Open.
type Connection struct {
	id   string
	path string

	db   *sqlx.DB
	conn *sqlx.Conn

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// dispatcher is the owning event loop; set once by Open.
	dispatcher eventloop.Dispatcher

	comparator *collation.Comparator
	translator *translate.Function

	eventsEnabled atomic.Bool
	readOnly      atomic.Bool
	dropped       atomic.Uint64
	listeners     *listenerSets

	lastError atomic.Value // string

	callMu sync.Mutex
	call   *callState

	logger   Logger
	observer ExecutionObserver
	hooksMu  sync.RWMutex
}

// connector hands database/sql the connection's private driver, so hooks
// registered in its ConnectHook belong to this Connection alone.
type connector struct {
	drv *sqlite3.SQLiteDriver
	dsn string
}

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c connector) Driver() driver.Driver {
	return c.drv
}

// Open opens the database at cfg.Path and registers the change hook, the
// WINLOCALE collation and the APPTRANSLATE function on it.
//
// ctx must carry the owning dispatcher (eventloop.WithDispatcher); change
// notifications for this Connection are posted there for its whole life.
// Open is expected to run on that dispatcher's goroutine.
//
// When SQLite fails to open the file, the returned error is an
// *EngineError matching ErrOpenFailed and no handle is left open.
func Open(ctx context.Context, cfg Config) (*Connection, error) {
	dispatcher, ok := eventloop.FromContext(ctx)
	if !ok {
		return nil, ErrNoDispatcher
	}

	if cfg.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	c := &Connection{
		id:         uuid.NewString(),
		path:       cfg.Path,
		dispatcher: dispatcher,
		comparator: collation.New(collation.AmbientLocale()),
		translator: cfg.Translator,
		logger:     cfg.Logger,
		listeners:  newListenerSets(),
	}
	if c.translator == nil {
		c.translator = translate.Default()
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	c.eventsEnabled.Store(true)

	if err := c.comparator.SetLanguage(cfg.CollationLanguage); err != nil {
		return nil, fmt.Errorf("setting collation language: %w", err)
	}

	drv := &sqlite3.SQLiteDriver{ConnectHook: c.registerHooks}
	sqlDB := sql.OpenDB(connector{drv: drv, dsn: buildDSN(cfg)})

	// One native handle per Connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	c.db = sqlx.NewDb(sqlDB, driverName)
	conn, err := c.db.Connx(ctx)
	if err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, engineError(opOpen, err)
	}
	c.conn = conn

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Path may be :memory: or a URI

	c.getLogger().Debug("database opened", "id", c.id, "path", c.path)
	return c, nil
}

// buildDSN builds the mattn/go-sqlite3 connection string.
// See: https://github.com/mattn/go-sqlite3#connection-string
func buildDSN(cfg Config) string {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	if sharedCache.Load() {
		dsn += "&cache=shared"
	}
	return dsn
}

// Close closes the native handle. It is safe to call more than once; every
// other method returns ErrClosed afterwards.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		connErr := c.conn.Close()
		dbErr := c.db.Close()
		switch {
		case connErr != nil:
			c.closeErr = fmt.Errorf("closing database: %w", connErr)
		case dbErr != nil:
			c.closeErr = fmt.Errorf("closing database: %w", dbErr)
		}
		c.getLogger().Debug("database closed", "id", c.id)
	})
	return c.closeErr
}

// handle returns the native connection, or ErrClosed.
func (c *Connection) handle() (*sqlx.Conn, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.conn, nil
}

// ID returns a unique identifier for this Connection, used to correlate
// logs and published changes.
func (c *Connection) ID() string {
	return c.id
}

// Path returns the filesystem path to the database file.
func (c *Connection) Path() string {
	return c.path
}

// SetLogger replaces the diagnostics logger. Nil discards diagnostics.
func (c *Connection) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.hooksMu.Lock()
	c.logger = logger
	c.hooksMu.Unlock()
}

func (c *Connection) getLogger() Logger {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.logger
}

// HealthCheck verifies the handle is open and answering queries.
func (c *Connection) HealthCheck(ctx context.Context) error {
	conn, err := c.handle()
	if err != nil {
		return err
	}
	var result int
	if err := conn.QueryRowxContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Autocommit reports whether the connection is outside an explicit
// transaction.
func (c *Connection) Autocommit() (bool, error) {
	conn, err := c.handle()
	if err != nil {
		return false, err
	}

	var autocommit bool
	err = conn.Raw(func(dc any) error {
		sc, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		autocommit = sc.AutoCommit()
		return nil
	})
	if err != nil {
		return false, engineError(opAutocommit, err)
	}
	return autocommit, nil
}

// LastInsertRowID returns the rowid of the most recent successful insert
// on this connection. It is 0 before any insert.
func (c *Connection) LastInsertRowID(ctx context.Context) (int64, error) {
	conn, err := c.handle()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := conn.GetContext(ctx, &id, "SELECT last_insert_rowid()"); err != nil {
		return 0, engineError(opLastInsertRowID, err)
	}
	return id, nil
}

// LastError returns the engine message recorded by the most recent failing
// call, or "" if no call has failed. Success does not clear it.
func (c *Connection) LastError() string {
	msg, _ := c.lastError.Load().(string)
	return msg
}

func (c *Connection) recordError(err error) {
	c.lastError.Store(engineMessage(err))
}

// CollationLanguage returns the WINLOCALE language override, or "" when the
// ambient user locale is used.
func (c *Connection) CollationLanguage() string {
	return c.comparator.Language()
}

// SetCollationLanguage overrides the WINLOCALE language with a BCP 47 tag.
// The empty string restores the ambient user locale.
func (c *Connection) SetCollationLanguage(tag string) error {
	return c.comparator.SetLanguage(tag)
}
