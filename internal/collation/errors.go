package collation

import "errors"

// ErrInvalidArgument is returned when text cannot be compared, either
// because it is not well-formed or because the locale is unusable. Raised
// from inside a query it aborts that query.
var ErrInvalidArgument = errors.New("collation: invalid argument")
