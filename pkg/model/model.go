// Package model holds the durable data shapes the scheduler runtime reads
// and writes through JobExecutionStore. None of these types own behavior;
// the execution and task packages operate on them.
package model

import "time"

// JobExecutionStatus is the durable status of one JobExecution row.
type JobExecutionStatus string

const (
	StatusQueued    JobExecutionStatus = "QUEUED"
	StatusRunning   JobExecutionStatus = "RUNNING"
	StatusCompleted JobExecutionStatus = "COMPLETED"
	StatusFailed    JobExecutionStatus = "FAILED"
	StatusCanceled  JobExecutionStatus = "CANCELED"
)

// ErrorCategory classifies an Error row. SYSTEM errors feed node quarantine.
type ErrorCategory string

const (
	CategorySystem ErrorCategory = "SYSTEM"
	CategoryAlgo   ErrorCategory = "ALGORITHM"
	CategoryData   ErrorCategory = "DATA"
)

// Resources is the scheduled cpu/memory/disk footprint of a task or execution.
type Resources struct {
	CPUs         float64
	MemMiB       int64
	DiskInMiB    int64
	DiskOutMiB   int64
	DiskTotalMiB int64
}

// Error is a catalog row describing a classified fault.
type Error struct {
	Code     string
	Category ErrorCategory
	Title    string
	Desc     string
}

// Node is the durable agent roster row the quarantine policy reads and
// writes. The scheduler core never creates nodes; it only pauses them.
type Node struct {
	ID              string
	Hostname        string
	IsPaused        bool
	IsPausedErrors  bool
	PauseReason     string
	LastHeartbeat   time.Time
}

// JobExecution is the durable row behind one RunningJobExecution. Field
// names mirror spec §3 directly: identifier, node/job/job-type references,
// status, scheduled resources, error reference, timestamps, attempt
// counters, and the ordered docker volume names.
type JobExecution struct {
	ID               int64
	NodeID           string
	JobID            int64
	JobTypeID        int64
	JobTypeRevision  int64
	Status           JobExecutionStatus
	Resources        Resources
	ErrorID          *string
	Queued           time.Time
	Started          *time.Time
	Ended            *time.Time
	IsSystem         bool
	NumExes          int
	MaxTries         int
	DockerVolumes    []string
	ErrorMapping     map[int]string // exit code -> error kind, per the job type's error interface
	Timeout          time.Duration  // max wall time since Started before IsTimedOut reports true; 0 disables
	Tasks            []TaskMetadata // final per-task snapshot, written at each terminal checkpoint
}

// TaskMetadata is one task's final timing/exit-code snapshot, written to
// the durable row at completion, cancellation, or failure checkpoints.
type TaskMetadata struct {
	TaskID        string
	TaskType      string // "pre", "job", "post", "cleanup"
	AgentID       string
	ContainerName string
	HasStarted    bool
	HasEnded      bool
	Started       *time.Time
	Ended         *time.Time
	ExitCode      *int32
}

// TaskStatus is the lifecycle state reported by the cluster manager for a
// single task.
type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "RUNNING"
	TaskStatusFinished TaskStatus = "FINISHED"
	TaskStatusFailed   TaskStatus = "FAILED"
	TaskStatusKilled   TaskStatus = "KILLED"
	TaskStatusLost     TaskStatus = "LOST"
)

// Reason-terminated constants the cluster manager may report alongside a
// terminal status.
const (
	ReasonExecutorTerminated = "REASON_EXECUTOR_TERMINATED"
)

// StatusUpdate is what the cluster manager's callback hands the router for
// one task.
type StatusUpdate struct {
	TaskID    string
	AgentID   string
	Status    TaskStatus
	Reason    string
	ExitCode  *int32
	Timestamp time.Time
}
