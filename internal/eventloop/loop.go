package eventloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/loopdb/internal/infrastructure/config"
)

// defaultQueueSize is used when the configured queue size is not positive.
const defaultQueueSize = 1024

// Dispatcher accepts units of work for later execution on the goroutine
// that owns it.
//
// Post must never run fn on the caller's goroutine.
type Dispatcher interface {
	Post(fn func()) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Loop is a single-goroutine work queue: the owning "UI" context of the
// process.
//
// Work posted from any goroutine is executed in FIFO order by the one
// goroutine inside Run. Anything that touches loop-owned state must run
// there.
//
// Thread Safety:
//   - Post, Do and Stop are safe for concurrent use.
//   - Run must be called exactly once.
type Loop struct {
	queue   chan func()
	stopped chan struct{}
	stop    sync.Once
	running atomic.Bool

	// executed counts completed work items; exposed for diagnostics.
	executed atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a loop with a bounded queue sized from cfg.
func New(cfg config.EventLoopConfig) *Loop {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Loop{
		queue:   make(chan func(), size),
		stopped: make(chan struct{}),
	}
}

// SetLogger sets a logger for recovered panics.
func (l *Loop) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Loop) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

// Post enqueues fn for execution on the loop goroutine.
//
// It never blocks: a full queue returns ErrQueueFull so that a burst of
// writes cannot stall the producer.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return ErrNilWork
	}

	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- fn:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(l.queue))
	}
}

// Do posts fn and waits until the loop has executed it.
//
// Do must not be called from the loop goroutine itself; that would
// deadlock until ctx is done.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted work until ctx is cancelled or Stop is called.
// Work still queued when the loop exits is discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stopped:
			return nil
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

// Stop makes Run return and rejects further posts. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.stop.Do(func() {
		close(l.stopped)
	})
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

// Pending returns the number of queued, not yet executed work items.
func (l *Loop) Pending() int {
	return len(l.queue)
}

// Executed returns the number of work items run so far.
func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}

// invoke runs one work item with panic recovery so a faulty listener
// cannot take down the loop.
func (l *Loop) invoke(fn func()) {
	defer func() {
		l.executed.Add(1)
		if r := recover(); r != nil {
			if logger := l.getLogger(); logger != nil {
				logger.Error("event loop work panic recovered", "panic", r)
			}
		}
	}()
	fn()
}
