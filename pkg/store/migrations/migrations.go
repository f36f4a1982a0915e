// Package migrations embeds the store's schema migrations so the binary
// carries them without a separate asset build step. Each supported engine
// gets its own subdirectory: the DDL itself, not just the placeholder
// style, differs enough between SQLite and Postgres (autoincrement vs.
// serial, REAL vs. double precision) that one migration source can't serve
// both.
package migrations

import "embed"

//go:embed sqlite3/*.sql postgres/*.sql
var FS embed.FS
