package resources

import (
	"golang.org/x/text/language"
)

// Resolver translates keys for one preferred language.
type Resolver struct {
	table     *Table
	preferred language.Tag
}

// NewResolver binds table to a preferred language. A nil table behaves
// like Empty().
func NewResolver(table *Table, preferred language.Tag) *Resolver {
	if table == nil {
		table = Empty()
	}
	return &Resolver{table: table, preferred: preferred}
}

// Resolve returns the translation of key, or key itself when the table
// has no acceptable translation.
func (r *Resolver) Resolve(key string) string {
	if text, ok := r.table.Lookup(r.preferred, key); ok {
		return text
	}
	return key
}

// Preferred returns the language this resolver translates into.
func (r *Resolver) Preferred() language.Tag {
	return r.preferred
}
