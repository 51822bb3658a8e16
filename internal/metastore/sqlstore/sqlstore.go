// Package sqlstore provides a queryable secondary index over table and
// job names, for deployments where scanning metastore's gob-encoded
// Database blob on every lookup isn't good enough. It indexes the same
// facts metastore.Store's Database descriptor already holds
// authoritatively; Index is a cache, not a source of truth, and a
// deployment can run without one.
package sqlstore

import "context"

// Index answers name/id lookups the way a master that has grown past a
// single in-memory Database would want to: SQL-backed, queryable,
// shared across master restarts without replaying every gob blob.
type Index interface {
	// RecordTable indexes a newly allocated table.
	RecordTable(ctx context.Context, id int, name string) error
	// TableID looks up a table's id by name.
	TableID(ctx context.Context, name string) (int, bool, error)

	// RecordJob indexes a finished job's outcome.
	RecordJob(ctx context.Context, id int, name string, success bool, message string) error
	// Jobs returns every indexed job, most recently recorded first.
	Jobs(ctx context.Context) ([]JobRecord, error)

	Close() error
}

// JobRecord is one indexed job's outcome.
type JobRecord struct {
	ID      int
	Name    string
	Success bool
	Message string
}
