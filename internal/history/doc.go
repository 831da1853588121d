// Package history records every pipeline request and its outcome in a local
// SQLite database. The database runs in WAL mode with a single connection.
package history
