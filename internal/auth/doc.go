// Package auth issues and validates the bearer tokens that guard the loopdb
// HTTP API.
//
// Tokens are HS256 JWTs carrying a subject and a Role. Roles map statically
// to permissions (no database lookup):
//
//	reader  query:read, changes:watch
//	writer  reader + query:write
//	admin   writer + database:maintain
package auth
