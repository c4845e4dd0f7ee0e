package eventloop

import "errors"

// Domain-specific errors for the event loop.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrQueueFull is returned by Post when the queue has no free slot.
	ErrQueueFull = errors.New("eventloop: queue full")

	// ErrStopped is returned when posting to a loop that has exited.
	ErrStopped = errors.New("eventloop: loop stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("eventloop: already running")

	// ErrNilWork is returned when posting a nil function.
	ErrNilWork = errors.New("eventloop: work cannot be nil")
)
