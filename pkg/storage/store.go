package storage

import (
	"context"
	"time"

	"github.com/scalecore/scheduler/pkg/model"
)

// JobExecutionStore is the persistence boundary contract from spec §4.9.
type JobExecutionStore interface {
	// GetLocked returns a row-level-locked JobExecution for updates. The
	// returned release function must be called to release the lock,
	// whether or not the caller mutated anything.
	GetLocked(ctx context.Context, id int64) (row *model.JobExecution, release func(), err error)

	// HandleJobCompletion atomically records terminal success.
	HandleJobCompletion(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error

	// HandleJobFailure atomically records terminal failure.
	HandleJobFailure(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata, classified *model.Error) error

	// CheckpointTasks persists each task's final timing/exit-code snapshot
	// without changing the row's Status, for callers that checkpoint a row
	// whose terminal status was already decided elsewhere (e.g. the sync
	// loop canceling an execution whose row is already CANCELED).
	CheckpointTasks(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error

	// GetWithJobAndJobType performs the eager join read quarantine and
	// task-completion refresh need.
	GetWithJobAndJobType(ctx context.Context, id int64) (*model.JobExecution, error)

	// CountRecentSystemFailures returns the distinct-job count of SYSTEM
	// category failures on node since the given time.
	CountRecentSystemFailures(ctx context.Context, nodeID string, since time.Time) (int, error)

	// IsTimedOut reports whether row has exceeded its allotted time as of
	// when.
	IsTimedOut(row *model.JobExecution, when time.Time) bool

	// ListByIDs returns every durable row among ids that still exists, for
	// the sync loop's per-tick reconciliation read.
	ListByIDs(ctx context.Context, ids []int64) ([]*model.JobExecution, error)

	Close() error
}

// NodeStore is the node-roster slice of the persistence boundary, shared
// with the quarantine policy.
type NodeStore interface {
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	PauseNode(ctx context.Context, nodeID, reason string) error
}
