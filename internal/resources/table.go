// Package resources resolves application string keys to translated text.
//
// A Table holds, for every key, the text in each language it was
// translated to. Lookups pick the best translation for a preferred
// language with a language.Matcher; a key with no acceptable translation
// resolves to the key itself.
//
// Tables are loaded from YAML:
//
//	greeting:
//	  en: "Hello"
//	  de: "Hallo"
//	farewell:
//	  en: "Goodbye"
package resources

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// entry holds every translation of one key.
type entry struct {
	tags    []language.Tag
	texts   []string
	matcher language.Matcher
}

// Table is an immutable translation table.
type Table struct {
	entries map[string]entry
}

// Empty returns a table with no keys.
func Empty() *Table {
	return &Table{entries: map[string]entry{}}
}

// Load reads a YAML translation table from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading translation table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML translation table.
func Parse(data []byte) (*Table, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	return NewTable(raw)
}

// NewTable builds a table from key → language → text.
func NewTable(raw map[string]map[string]string) (*Table, error) {
	t := &Table{entries: make(map[string]entry, len(raw))}

	for key, translations := range raw {
		langs := make([]string, 0, len(translations))
		for lang := range translations {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		var e entry
		for _, lang := range langs {
			tag, err := language.Parse(lang)
			if err != nil {
				return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidLanguage, key, err)
			}
			e.tags = append(e.tags, tag)
			e.texts = append(e.texts, translations[lang])
		}
		if len(e.tags) > 0 {
			e.matcher = language.NewMatcher(e.tags)
		}
		t.entries[key] = e
	}

	return t, nil
}

// Len returns the number of keys.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the translation of key best matching preferred.
// ok is false when the key is unknown or no translation is acceptable.
func (t *Table) Lookup(preferred language.Tag, key string) (text string, ok bool) {
	e, found := t.entries[key]
	if !found || e.matcher == nil {
		return "", false
	}

	_, i, confidence := e.matcher.Match(preferred)
	if confidence == language.No {
		return "", false
	}
	return e.texts[i], true
}
