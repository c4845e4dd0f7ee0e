package statement

import "errors"

var (
	// ErrCompile is returned when SQLite rejects the SQL text.
	ErrCompile = errors.New("statement: compile failed")

	// ErrBind is returned when a parameter container does not fit the
	// statement's placeholders or carries an unsupported value.
	ErrBind = errors.New("statement: bind failed")

	// ErrExecute is returned when stepping the statement fails.
	ErrExecute = errors.New("statement: execute failed")

	// ErrClosed is returned for any use of a closed statement.
	ErrClosed = errors.New("statement: closed")

	// ErrDelivery is returned by Each when a row cannot be posted to the
	// delivery dispatcher.
	ErrDelivery = errors.New("statement: row delivery failed")
)
