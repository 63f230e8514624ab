// Package postgres is the Persistence Gateway for shared deployments,
// built on a pgx connection pool with squirrel for dynamic queries.
//
// Bulk stage outputs are written with COPY. Aggregation commits are
// guarded by conditional writes on the insight revision, so concurrent
// writers to one industry surface as domain.ErrAggregationConflict
// rather than lost updates.
//
// Tests run against a live server named by OPPTRACK_TEST_POSTGRES_DSN
// and are skipped when it is unset.
package postgres
