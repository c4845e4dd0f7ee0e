package resources

import "errors"

var (
	// ErrInvalidTable is returned when a translation table cannot be parsed.
	ErrInvalidTable = errors.New("resources: invalid translation table")

	// ErrInvalidLanguage is returned for an unparseable language tag.
	ErrInvalidLanguage = errors.New("resources: invalid language tag")
)
