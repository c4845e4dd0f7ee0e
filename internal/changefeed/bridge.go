package changefeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/loopdb/internal/infrastructure/database"
	"github.com/nerrad567/loopdb/internal/infrastructure/mqtt"
)

const defaultBufferSize = 256

// Publisher sends an encoded value to an MQTT topic.
// Satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Message is the JSON payload published for one row change.
type Message struct {
	Connection string `json:"connection"`
	Table      string `json:"table"`
	Action     string `json:"action"`
	RowID      int64  `json:"rowid"`
	Timestamp  string `json:"timestamp"`
}

type envelope struct {
	topic string
	msg   Message
}

// Bridge forwards change events from attached connections to a Publisher.
//
// Thread Safety:
//   - Attach, Start, Stop and the counters are safe for concurrent use.
type Bridge struct {
	publisher Publisher
	topics    mqtt.Topics
	queue     chan envelope

	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge buffering at most bufferSize pending changes.
func New(publisher Publisher, topics mqtt.Topics, bufferSize int) *Bridge {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bridge{
		publisher: publisher,
		topics:    topics,
		queue:     make(chan envelope, bufferSize),
		done:      make(chan struct{}),
	}
}

// SetLogger sets a logger for publish failures and lifecycle messages.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// Attach subscribes the bridge to every change kind on conn. The returned
// function detaches it again.
func (b *Bridge) Attach(conn *database.Connection) (detach func()) {
	unsubs := []func(){
		conn.OnInsert(b.enqueue(database.Insert)),
		conn.OnUpdate(b.enqueue(database.Update)),
		conn.OnDelete(b.enqueue(database.Delete)),
	}
	b.logInfo("change feed attached", "connection", conn.ID(), "path", conn.Path())

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// enqueue returns a listener that hands kind events to the worker.
// It runs on the dispatcher goroutine and must not block.
func (b *Bridge) enqueue(kind database.ChangeKind) database.Listener {
	action := kind.String()
	return func(conn *database.Connection, ev database.ChangeEvent) {
		env := envelope{
			topic: b.topics.Change(ev.Table, action),
			msg: Message{
				Connection: conn.ID(),
				Table:      ev.Table,
				Action:     action,
				RowID:      ev.RowID,
				Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			},
		}

		select {
		case <-b.done:
			b.dropped.Add(1)
		case b.queue <- env:
		default:
			b.dropped.Add(1)
			b.logDebug("change feed buffer full", "table", ev.Table, "action", action)
		}
	}
}

// Start launches the publishing worker. It stops when ctx is cancelled or
// Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	b.wg.Add(1)
	go b.run(ctx)

	b.logInfo("change feed started", "buffer", cap(b.queue))
	return nil
}

// Stop halts the worker after it has published whatever is already
// buffered. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.logInfo("change feed stopped",
			"published", b.published.Load(),
			"dropped", b.dropped.Load(),
			"failed", b.failed.Load())
	})
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			b.drain()
			return
		case env := <-b.queue:
			b.publish(env)
		}
	}
}

// drain publishes what is left in the buffer without waiting for more.
func (b *Bridge) drain() {
	for {
		select {
		case env := <-b.queue:
			b.publish(env)
		default:
			return
		}
	}
}

func (b *Bridge) publish(env envelope) {
	if err := b.publisher.PublishJSON(env.topic, env.msg, false); err != nil {
		b.failed.Add(1)
		b.logError("change not published", err)
		return
	}
	b.published.Add(1)
}

// Published returns the number of changes successfully published.
func (b *Bridge) Published() uint64 {
	return b.published.Load()
}

// Dropped returns the number of changes discarded because the buffer was
// full or the bridge was stopped.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Failed returns the number of publish attempts that returned an error.
func (b *Bridge) Failed() uint64 {
	return b.failed.Load()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
