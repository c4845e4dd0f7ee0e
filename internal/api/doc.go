// Package api implements the HTTP API and WebSocket change stream of loopdb.
//
// This package provides:
//   - POST /api/v1/query executing a statement in run, one, all or each mode
//   - connection state, vacuum, collation and event-flag endpoints
//   - a WebSocket hub relaying row changes to subscribed clients
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Confinement
//
// A database.Connection must not be used concurrently. Handlers take the
// server's connection mutex and call it on the request goroutine, so a
// slow statement never stalls the event loop. The loop only delivers change
// events, whose listeners enqueue to WebSocket clients. Rows for mode
// "each" are queued per request and written once the statement finishes.
//
// # Security
//
// With security.jwt.secret set, every /api/v1 route except /health needs a
// bearer token (see package auth). Tokens with the reader role execute
// statements under database.Connection.WithReadOnly: the SQLite authorizer
// refuses writes, pragma assignments, ATTACH and DETACH, and statements
// SQLite does not report as read-only are rejected before they run. Without
// a secret the API is open and every caller is treated as admin.
package api
