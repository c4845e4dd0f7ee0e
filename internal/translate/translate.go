// Package translate implements the APPTRANSLATE SQL scalar function.
//
// APPTRANSLATE(key) looks key up in the application's translation table and
// returns the text for the preferred language. The resolver behind it is
// built on first use and shared by every call and every connection that
// uses the same Function.
package translate

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"

	"github.com/nerrad567/loopdb/internal/collation"
	"github.com/nerrad567/loopdb/internal/infrastructure/config"
	"github.com/nerrad567/loopdb/internal/resources"
)

// FuncName is the SQL name the function is registered under.
const FuncName = "APPTRANSLATE"

// Resolver maps a resource key to display text.
type Resolver interface {
	Resolve(key string) string
}

// Function is the APPTRANSLATE implementation.
type Function struct {
	resolver func() (Resolver, error)
}

// New returns a Function whose resolver is created by load on the first
// call. load runs at most once; its result, including an error, is reused.
func New(load func() (Resolver, error)) *Function {
	return &Function{resolver: sync.OnceValues(load)}
}

// FromConfig returns a Function backed by the YAML table in
// cfg.ResourceFile (none means every key resolves to itself) and the
// language in cfg.Language (empty means the ambient user locale).
func FromConfig(cfg config.TranslationConfig) *Function {
	return New(func() (Resolver, error) {
		preferred := collation.AmbientLocale()
		if cfg.Language != "" {
			tag, err := language.Parse(cfg.Language)
			if err != nil {
				return nil, fmt.Errorf("parsing translation language %q: %w", cfg.Language, err)
			}
			preferred = tag
		}

		table := resources.Empty()
		if cfg.ResourceFile != "" {
			t, err := resources.Load(cfg.ResourceFile)
			if err != nil {
				return nil, err
			}
			table = t
		}

		return resources.NewResolver(table, preferred), nil
	})
}

var defaultFunction = sync.OnceValue(func() *Function {
	return FromConfig(config.TranslationConfig{})
})

// Default returns the process-wide Function used by connections that are
// not given one explicitly.
func Default() *Function {
	return defaultFunction()
}

// Call evaluates APPTRANSLATE. It is registered with SQLite as a variadic
// function so that a wrong argument count reaches this check instead of
// failing statement compilation.
func (f *Function) Call(args ...any) (string, error) {
	if len(args) != 1 {
		return "", ErrInvalidParameters
	}
	key, ok := args[0].(string)
	if !ok {
		return "", ErrInvalidParameters
	}

	r, err := f.resolver()
	if err != nil {
		return "", fmt.Errorf("loading translations: %w", err)
	}
	return r.Resolve(key), nil
}
