// Package statement compiles SQL against a single connection, binds a
// parameter container to it and executes it in one of four modes.
//
// A Statement is single use: Prepare, Bind, then exactly one of Run, One,
// All or Each, then Close. Rows are serialized as JSON objects whose keys
// follow the result column order.
//
// Binding follows the container's variant:
//
//   - Positional containers bind by ordinal to ?, ?NNN, :name, @name or
//     $name placeholders; SQLite rejects an argument count mismatch when
//     the statement executes.
//   - Named containers bind to :name placeholders. Every key must be used
//     by the SQL and every :name in the SQL must have a key, otherwise
//     Bind fails with ErrBind.
package statement
