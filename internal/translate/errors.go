package translate

import "errors"

// ErrInvalidParameters is the function-evaluation error for a call with the
// wrong arity or a non-text argument. The text is what SQLite reports to the
// statement, so it is kept exactly as the query author sees it.
var ErrInvalidParameters = errors.New("Invalid parameters") //nolint:staticcheck // surfaced verbatim by SQLite
