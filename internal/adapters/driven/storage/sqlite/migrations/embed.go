// Package migrations embeds the versioned SQLite schema. Files are named
// NNN_name.up.sql and NNN_name.down.sql; each up file records its version
// in schema_migrations.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
