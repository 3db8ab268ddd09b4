// Package stores provides the persistence layer for SiteStack.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for validation run history and derived output
// snapshots.
package stores
