package statement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// bindNamed rewrites the :name placeholders in query to ordinal ones and
// returns the matching argument list. It fails when the SQL names a
// parameter that values lacks, or when values holds a key the SQL never
// uses.
func bindNamed(query string, values map[string]any) (string, []any, error) {
	// Bind each key to its own name first to learn which names the SQL uses.
	names := make(map[string]any, len(values))
	for k := range values {
		names[k] = k
	}
	rewritten, used, err := sqlx.Named(query, names)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBind, err)
	}

	seen := make(map[string]bool, len(used))
	args := make([]any, len(used))
	for i, name := range used {
		key := name.(string)
		seen[key] = true
		args[i] = values[key]
	}

	var unused []string
	for k := range values {
		if !seen[k] {
			unused = append(unused, k)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return "", nil, fmt.Errorf("%w: no :name placeholder for %s", ErrBind, strings.Join(unused, ", "))
	}

	return rewritten, args, nil
}
