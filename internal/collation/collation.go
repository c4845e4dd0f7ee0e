// Package collation implements the WINLOCALE collation: locale-aware,
// case- and diacritic-insensitive text ordering.
//
// The comparator has two entry points. CompareUTF16 is the native one;
// CompareUTF8 validates, transcodes to UTF-16 and delegates, so both
// produce the same total order for any well-formed input.
package collation

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Name is the collation name used in COLLATE clauses.
const Name = "WINLOCALE"

// Comparator orders text for one connection.
//
// The effective locale is the override set with SetLanguage, or the
// ambient locale given to New when no override is set.
//
// Thread Safety:
//   - All methods are safe for concurrent use; collators are not, so
//     comparisons are serialised.
type Comparator struct {
	mu        sync.Mutex
	ambient   language.Tag
	override  *language.Tag
	collators map[language.Tag]*collate.Collator
}

// New returns a comparator that falls back to ambient.
func New(ambient language.Tag) *Comparator {
	return &Comparator{
		ambient:   ambient,
		collators: make(map[language.Tag]*collate.Collator),
	}
}

// SetLanguage overrides the locale with a BCP 47 tag. An empty tag
// restores the ambient locale.
func (c *Comparator) SetLanguage(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tag == "" {
		c.override = nil
		return nil
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return fmt.Errorf("%w: language %q: %w", ErrInvalidArgument, tag, err)
	}
	c.override = &parsed
	return nil
}

// Language returns the override tag, or "" when the ambient locale is used.
func (c *Comparator) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.override == nil {
		return ""
	}
	return c.override.String()
}

// Effective returns the tag comparisons currently use.
func (c *Comparator) Effective() language.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

func (c *Comparator) effectiveLocked() language.Tag {
	if c.override != nil {
		return *c.override
	}
	return c.ambient
}

// CompareUTF16 orders two UTF-16 strings, returning -1, 0 or +1.
// Unpaired surrogates yield ErrInvalidArgument.
func (c *Comparator) CompareUTF16(a, b []uint16) (int, error) {
	sa, err := decodeUTF16(a)
	if err != nil {
		return 0, err
	}
	sb, err := decodeUTF16(b)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collatorLocked().CompareString(sa, sb), nil
}

// CompareUTF8 orders two UTF-8 strings by transcoding them to UTF-16 and
// delegating to CompareUTF16. Invalid UTF-8 cannot be transcoded
// losslessly and yields ErrInvalidArgument.
func (c *Comparator) CompareUTF8(a, b string) (int, error) {
	if !utf8.ValidString(a) || !utf8.ValidString(b) {
		return 0, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidArgument)
	}
	return c.CompareUTF16(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// collatorLocked returns the cached collator for the effective locale.
func (c *Comparator) collatorLocked() *collate.Collator {
	tag := c.effectiveLocked()
	col, ok := c.collators[tag]
	if !ok {
		col = collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics)
		c.collators[tag] = col
	}
	return col
}

// decodeUTF16 converts s to a Go string, rejecting unpaired surrogates.
func decodeUTF16(s []uint16) (string, error) {
	runes := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		if !utf16.IsSurrogate(r) {
			runes = append(runes, r)
			continue
		}
		if i+1 == len(s) {
			return "", fmt.Errorf("%w: unpaired surrogate at %d", ErrInvalidArgument, i)
		}
		dec := utf16.DecodeRune(r, rune(s[i+1]))
		if dec == unicode.ReplacementChar {
			return "", fmt.Errorf("%w: unpaired surrogate at %d", ErrInvalidArgument, i)
		}
		runes = append(runes, dec)
		i++
	}
	return string(runes), nil
}
