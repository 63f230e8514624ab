// Package sqlite is the default persistence gateway: documents, their
// stage outputs, industry insights and scheduler state in one SQLite file.
//
// It uses modernc.org/sqlite, a pure Go driver, so the binary builds
// without CGO.
//
// # Schema
//
// Versioned migrations live in migrations/ and are embedded into the
// binary. Each .up.sql file records its own version in schema_migrations.
//
// # Transactions
//
// Stage commits, aggregation commits and deletes each run in a single
// transaction. Aggregation commits compare insight revisions inside the
// transaction and fail with domain.ErrAggregationConflict when another
// writer got there first.
//
// # Data Location
//
// By default, the database is stored at ~/.opptrack/data/opptrack.db
package sqlite
