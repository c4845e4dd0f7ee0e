// Package params defines the parameter container accepted by every
// execution entry point.
//
// A Container is either positional (an ordered list of scalars bound to
// ? placeholders) or named (a map bound to :name placeholders). The binding
// mode is fixed by the constructor used and never changes afterwards.
//
// Usage:
//
//	conn.Run(ctx, "INSERT INTO users (name) VALUES (?)", params.Positional("ada"))
//	conn.Run(ctx, "INSERT INTO users (name) VALUES (:name)", params.Named(map[string]any{"name": "ada"}))
package params

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the binding protocol of a Container.
type Kind int

const (
	// KindNone is the zero Container: no parameters at all.
	KindNone Kind = iota

	// KindPositional binds values by ordinal.
	KindPositional

	// KindNamed binds values by placeholder name.
	KindNamed
)

// String returns the kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindPositional:
		return "positional"
	case KindNamed:
		return "named"
	default:
		return "none"
	}
}

// Container is an immutable set of statement parameters.
//
// The zero value is a valid empty container.
type Container struct {
	kind       Kind
	positional []any
	named      map[string]any
}

// None returns an empty container.
func None() Container {
	return Container{}
}

// Positional returns a container that binds values by ordinal.
// The slice is copied.
func Positional(values ...any) Container {
	cp := make([]any, len(values))
	copy(cp, values)
	return Container{kind: KindPositional, positional: cp}
}

// Named returns a container that binds values by name.
// Names are given without the leading colon. The map is copied.
func Named(values map[string]any) Container {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Container{kind: KindNamed, named: cp}
}

// Kind returns the binding protocol of the container.
func (c Container) Kind() Kind {
	return c.kind
}

// Len returns the number of values held.
func (c Container) Len() int {
	switch c.kind {
	case KindPositional:
		return len(c.positional)
	case KindNamed:
		return len(c.named)
	default:
		return 0
	}
}

// Values returns a copy of the positional values, or nil for other kinds.
func (c Container) Values() []any {
	if c.kind != KindPositional {
		return nil
	}
	cp := make([]any, len(c.positional))
	copy(cp, c.positional)
	return cp
}

// Map returns a copy of the named values, or nil for other kinds.
func (c Container) Map() map[string]any {
	if c.kind != KindNamed {
		return nil
	}
	cp := make(map[string]any, len(c.named))
	for k, v := range c.named {
		cp[k] = v
	}
	return cp
}

// Names returns the parameter names in sorted order.
func (c Container) Names() []string {
	if c.kind != KindNamed {
		return nil
	}
	names := make([]string, 0, len(c.named))
	for k := range c.named {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every value is a scalar the engine can bind.
func (c Container) Validate() error {
	switch c.kind {
	case KindPositional:
		for i, v := range c.positional {
			if !isScalar(v) {
				return fmt.Errorf("%w: position %d has type %T", ErrUnsupportedValue, i+1, v)
			}
		}
	case KindNamed:
		for _, name := range c.Names() {
			if name == "" {
				return ErrEmptyName
			}
			if v := c.named[name]; !isScalar(v) {
				return fmt.Errorf("%w: %q has type %T", ErrUnsupportedValue, name, v)
			}
		}
	}
	return nil
}

// isScalar reports whether v can be bound directly by the sqlite3 driver.
func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
