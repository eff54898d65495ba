// Package ledger keeps a SQLite history of copy outcomes.
//
// Each row records one attempt by the file copier: the run it belonged to,
// the source and destination paths, whether the copy succeeded, the bytes
// written, and how long it took. The ledger is an audit trail only; nothing
// reads it back into the pipeline, so pending paths are never replayed after
// a restart.
package ledger
