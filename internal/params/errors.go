package params

import "errors"

var (
	// ErrUnsupportedValue is returned when a value is not a bindable scalar.
	ErrUnsupportedValue = errors.New("params: unsupported value type")

	// ErrEmptyName is returned when a named container holds an empty key.
	ErrEmptyName = errors.New("params: parameter name cannot be empty")
)
