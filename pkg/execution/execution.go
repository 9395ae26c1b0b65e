// Package execution implements RunningJobExecution (C2): the synchronization
// boundary for one job execution's ordered task pipeline. All mutation goes
// through its methods; the lock protects only in-memory queue structure, so
// durable writes and cluster calls never happen while it is held.
package execution

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/events"
	"github.com/scalecore/scheduler/pkg/log"
	"github.com/scalecore/scheduler/pkg/model"
	"github.com/scalecore/scheduler/pkg/retry"
	"github.com/scalecore/scheduler/pkg/task"
)

// TerminalEventSink is the outbound notification the execution calls on a
// terminal outcome. It inverts the circular dependency the original source
// worked around with a lazily-imported queue module (see design notes):
// the owning layer implements this and is injected at construction.
type TerminalEventSink interface {
	Complete(id int64, when time.Time, tasks []model.TaskMetadata) error
	Fail(id int64, when time.Time, tasks []model.TaskMetadata, classified *model.Error) error
}

// Store is the slice of JobExecutionStore (C9) RunningJobExecution needs
// directly, kept narrow so tests can fake it without a full store.
type Store interface {
	HandleJobCompletion(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error
	HandleJobFailure(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata, classified *model.Error) error
	GetWithJobAndJobType(ctx context.Context, id int64) (*model.JobExecution, error)

	// CheckpointTasks persists each task's final timing/exit-code snapshot
	// without touching the row's Status. Used where the caller does not
	// yet know (or must not decide) the terminal outcome itself — e.g. a
	// cancellation, whose row is already CANCELED before this execution
	// ever finds out about it.
	CheckpointTasks(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error
}

// QuarantineEvaluator is the slice of NodeQuarantinePolicy (C6)
// RunningJobExecution calls into after a failure it classifies as SYSTEM.
type QuarantineEvaluator interface {
	Evaluate(ctx context.Context, row *model.JobExecution, classified *model.Error) error
}

// RunningJobExecution owns the ordered task pipeline for one job execution
// and serializes every external event against it.
type RunningJobExecution struct {
	mu sync.Mutex

	id            int64
	jobTypeID     int64
	nodeID        string
	dockerVolumes []string

	allTasks       []task.Task // immutable after construction
	remainingTasks []task.Task // FIFO, drained
	currentTask    task.Task   // at most one

	store      Store
	sink       TerminalEventSink
	quarantine QuarantineEvaluator
	errCatalog errcat.Catalog
	retryer    retry.Policy
	logger     zerolog.Logger
	broker     *events.Broker
}

// Config bundles RunningJobExecution's collaborators.
type Config struct {
	ID            int64
	JobTypeID     int64
	NodeID        string
	DockerVolumes []string
	IsSystem      bool
	Tasks         PipelineTasks
	Store         Store
	Sink          TerminalEventSink
	Quarantine    QuarantineEvaluator
	ErrorCatalog  errcat.Catalog
	RetryPolicy   retry.Policy
	Broker        *events.Broker
}

// PipelineTasks carries the concrete tasks the caller already constructed
// for this execution. For a system job only Job is set; otherwise all three
// are set, per the task-ordering invariant (spec §3 invariant 4).
type PipelineTasks struct {
	Pre  task.Task
	Job  task.Task
	Post task.Task
}

// New builds a RunningJobExecution. For a non-system job allTasks is
// exactly [Pre, Job, Post]; for a system job it is exactly [Job].
func New(cfg Config) *RunningJobExecution {
	var all []task.Task
	if cfg.IsSystem {
		all = []task.Task{cfg.Tasks.Job}
	} else {
		all = []task.Task{cfg.Tasks.Pre, cfg.Tasks.Job, cfg.Tasks.Post}
	}

	remaining := make([]task.Task, len(all))
	copy(remaining, all)

	retryer := cfg.RetryPolicy
	if retryer == (retry.Policy{}) {
		retryer = retry.Default
	}

	exe := &RunningJobExecution{
		id:             cfg.ID,
		jobTypeID:      cfg.JobTypeID,
		nodeID:         cfg.NodeID,
		dockerVolumes:  cfg.DockerVolumes,
		allTasks:       all,
		remainingTasks: remaining,
		store:          cfg.Store,
		sink:           cfg.Sink,
		quarantine:     cfg.Quarantine,
		errCatalog:     cfg.ErrorCatalog,
		retryer:        retryer,
		logger:         log.WithComponent("execution").With().Int64("job_exe_id", cfg.ID).Logger(),
		broker:         cfg.Broker,
	}
	exe.publish(events.EventExecutionStarted, "execution started")
	return exe
}

// publish emits an event through the broker if one was configured; it is a
// no-op otherwise so tests can build a RunningJobExecution without one.
func (e *RunningJobExecution) publish(t events.EventType, msg string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		Type:     t,
		JobExeID: e.id,
		NodeID:   e.nodeID,
		Message:  msg,
	})
}

// ID returns the execution's durable identifier.
func (e *RunningJobExecution) ID() int64 { return e.id }

// JobTypeID returns the execution's job type reference.
func (e *RunningJobExecution) JobTypeID() int64 { return e.jobTypeID }

// NodeID returns the node this execution is bound to.
func (e *RunningJobExecution) NodeID() string { return e.nodeID }

// CurrentTask returns the task presently in flight, or nil.
func (e *RunningJobExecution) CurrentTask() task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTask
}

// IsFinished reports invariant 3: no current task and no remaining tasks.
func (e *RunningJobExecution) IsFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isFinishedLocked()
}

func (e *RunningJobExecution) isFinishedLocked() bool {
	return e.currentTask == nil && len(e.remainingTasks) == 0
}

// IsNextTaskReady reports true iff no task is current and at least one
// remains.
func (e *RunningJobExecution) IsNextTaskReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTask == nil && len(e.remainingTasks) > 0
}

// NextTaskResources returns the resources of the head of the remaining
// queue, or nil if the queue is empty. It does not check whether a task is
// currently in flight.
func (e *RunningJobExecution) NextTaskResources() *model.Resources {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.remainingTasks) == 0 {
		return nil
	}
	r := e.remainingTasks[0].Resources()
	return &r
}

// StartNextTask atomically pops the head of the remaining queue into
// current, but only if no task is presently current and the queue is
// non-empty. Returns the started task, or nil.
func (e *RunningJobExecution) StartNextTask() task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentTask != nil || len(e.remainingTasks) == 0 {
		return nil
	}
	next := e.remainingTasks[0]
	e.remainingTasks = e.remainingTasks[1:]
	e.currentTask = next
	return next
}

// GetContainerNames returns the container names of every task in this
// execution that has one, under the execution lock. CleanupManager uses
// this to build a targeted cleanup command's grep list.
func (e *RunningJobExecution) GetContainerNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, t := range e.allTasks {
		if n := t.ContainerName(); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// DockerVolumes returns the ordered docker volume names for this execution.
func (e *RunningJobExecution) DockerVolumes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dockerVolumes
}

func (e *RunningJobExecution) allTaskMetadata() []model.TaskMetadata {
	meta := make([]model.TaskMetadata, len(e.allTasks))
	for i, t := range e.allTasks {
		t.PopulateJobExeModel(&meta[i])
	}
	return meta
}
