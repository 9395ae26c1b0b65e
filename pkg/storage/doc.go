// Package storage implements the JobExecutionStore and NodeStore
// persistence boundary (C9) on top of bbolt: one bucket of JobExecution
// rows keyed by big-endian int64 id, one bucket of Node rows keyed by node
// id, both JSON-encoded.
//
// GetLocked stands in for a real row-level database lock with a per-id
// in-process mutex; a production deployment backed by a real RDBMS would
// replace this with SELECT ... FOR UPDATE semantics without changing the
// JobExecutionStore contract.
package storage
