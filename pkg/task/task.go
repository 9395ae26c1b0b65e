// Package task implements the Task leaf state machine (C1): a tagged
// variant (Pre, Job, Post, Cleanup) sharing one capability set rather than
// a class hierarchy, per the design notes on variant tasks.
package task

import (
	"sync"
	"time"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/model"
)

// Kind tags which variant a Task is.
type Kind string

const (
	KindPre     Kind = "pre"
	KindJob     Kind = "job"
	KindPost    Kind = "post"
	KindCleanup Kind = "cleanup"
)

// Task id prefixes per the encoding in spec §6.
const (
	PrefixPre     = "scale_pre"
	PrefixJob     = "scale_job"
	PrefixPost    = "scale_post"
	PrefixCleanup = "scale_cleanup"
)

// Task is the shared capability set every variant implements. Methods that
// mutate state acquire the task's own lock internally; callers do not
// manage task-level locking themselves.
type Task interface {
	ID() string
	Kind() Kind
	AgentID() string
	ContainerName() string
	UsesDocker() bool
	Resources() model.Resources
	HasStarted() bool
	HasEnded() bool

	// Update applies a non-terminal RUNNING transition. Idempotent on
	// repeat updates bearing the same task id.
	Update(u model.StatusUpdate)

	// Complete applies terminal success. Returns true if successors must
	// re-read durable job-execution fields before proceeding; the base
	// implementation always returns false, and every variant in this
	// package delegates to it.
	Complete(u model.StatusUpdate) (needsRefresh bool)

	// DetermineError classifies a terminal failure. Returns nil when no
	// variant-specific classification applies; the caller substitutes
	// the unknown code in that case.
	DetermineError(u model.StatusUpdate) *model.Error

	// PopulateJobExeModel copies this task's final timing, exit code, and
	// identity into the durable row during a checkpoint.
	PopulateJobExeModel(row *model.TaskMetadata)

	// RefreshCachedValues re-reads mutable, scheduled inputs from the
	// durable row. The base implementation is a no-op.
	RefreshCachedValues(row *model.JobExecution)
}

// base holds the fields and transition logic shared by every variant.
// Exported fields would invite external mutation outside the lock; callers
// interact only through the Task interface.
type base struct {
	mu            sync.Mutex
	id            string
	kind          Kind
	name          string
	agentID       string
	containerName string
	usesDocker    bool
	resources     model.Resources
	errorCatalog  errcat.Catalog

	hasStarted       bool
	hasEnded         bool
	started          *time.Time
	ended            *time.Time
	lastStatusUpdate *time.Time
	exitCode         *int32
}

func newBase(id string, kind Kind, name, agentID, containerName string, usesDocker bool, res model.Resources, cat errcat.Catalog) base {
	return base{
		id:            id,
		kind:          kind,
		name:          name,
		agentID:       agentID,
		containerName: containerName,
		usesDocker:    usesDocker,
		resources:     res,
		errorCatalog:  cat,
	}
}

func (b *base) ID() string                      { return b.id }
func (b *base) Kind() Kind                       { return b.kind }
func (b *base) AgentID() string                  { return b.agentID }
func (b *base) ContainerName() string            { return b.containerName }
func (b *base) UsesDocker() bool                 { return b.usesDocker }
func (b *base) Resources() model.Resources       { return b.resources }
func (b *base) HasStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasStarted
}

func (b *base) HasEnded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasEnded
}

// update applies the shared RUNNING transition: first RUNNING update marks
// has_started; idempotent on repeats.
func (b *base) update(u model.StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasStarted {
		b.hasStarted = true
		t := u.Timestamp
		b.started = &t
	}
	t := u.Timestamp
	b.lastStatusUpdate = &t
}

// complete applies the shared terminal-success transition and always
// reports needsRefresh=false; see the Task.Complete doc.
func (b *base) complete(u model.StatusUpdate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasEnded {
		return false
	}
	b.hasEnded = true
	t := u.Timestamp
	b.ended = &t
	b.lastStatusUpdate = &t
	b.exitCode = u.ExitCode
	return false
}

// considerGeneralError is the fallback fault classification shared by every
// variant: unstarted tasks fail at launch; a started, containerized task
// whose executor the cluster manager reports terminated fails as
// docker-terminated; anything else defers to the caller's unknown code.
func (b *base) considerGeneralError(u model.StatusUpdate) *model.Error {
	b.mu.Lock()
	hasStarted := b.hasStarted
	b.mu.Unlock()

	if !hasStarted {
		if b.usesDocker {
			return b.errorCatalog.ByCode(errcat.CodeDockerTaskLaunch)
		}
		return b.errorCatalog.ByCode(errcat.CodeTaskLaunch)
	}
	if u.Reason == model.ReasonExecutorTerminated && b.usesDocker {
		return b.errorCatalog.ByCode(errcat.CodeDockerTerminated)
	}
	return nil
}

func (b *base) populateJobExeModel(row *model.TaskMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row.TaskID = b.id
	row.TaskType = string(b.kind)
	row.AgentID = b.agentID
	row.ContainerName = b.containerName
	row.HasStarted = b.hasStarted
	row.HasEnded = b.hasEnded
	row.Started = b.started
	row.Ended = b.ended
	row.ExitCode = b.exitCode
}

func (b *base) refreshCachedValues(*model.JobExecution) {}
