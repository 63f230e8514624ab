// Package migrations holds the Postgres schema, applied in version order
// by the postgres store on startup.
package migrations

import "embed"

// FS contains every migration file.
//
//go:embed *.sql
var FS embed.FS
