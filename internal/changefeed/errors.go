package changefeed

import "errors"

// Sentinel errors for the change feed.
var (
	// ErrAlreadyStarted indicates Start was called on a running bridge.
	ErrAlreadyStarted = errors.New("changefeed: already started")

	// ErrStopped indicates the bridge has been stopped and cannot restart.
	ErrStopped = errors.New("changefeed: stopped")
)
