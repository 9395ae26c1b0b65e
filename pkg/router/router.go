// Package router implements TaskUpdateRouter (C5): it parses the execution
// binding out of a task id and dispatches the status update to the owning
// execution in the registry.
package router

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scalecore/scheduler/pkg/execution"
	"github.com/scalecore/scheduler/pkg/log"
	"github.com/scalecore/scheduler/pkg/model"
)

// Registry is the slice of RunningJobManager the router needs.
type Registry interface {
	Get(id int64) *execution.RunningJobExecution
}

// Router dispatches incoming status updates to the correct execution.
type Router struct {
	registry Registry
	logger   zerolog.Logger
}

// New builds a Router over the given registry.
func New(registry Registry) *Router {
	return &Router{registry: registry, logger: log.WithComponent("router")}
}

// Route locates the execution registered under execID and invokes
// TaskUpdate on it. It does not derive execID from u.TaskID; ParseExecutionID
// is a separate helper and Route does not call it. Updates for an execID
// with no registered execution are dropped with a warning; an update whose
// task id is not the execution's current task is dropped silently by
// TaskUpdate.
func (r *Router) Route(ctx context.Context, u model.StatusUpdate, execID int64) {
	exe := r.registry.Get(execID)
	if exe == nil {
		r.logger.Warn().
			Str("task_id", u.TaskID).
			Int64("job_exe_id", execID).
			Msg("status update for unknown execution dropped")
		return
	}
	exe.TaskUpdate(ctx, u)
}

// ParseExecutionID extracts the counter segment of a task id of the form
// `<prefix>_<framework_id>_<counter>`. The counter segment is the part the
// scheduler core minted, not necessarily the execution id itself — callers
// that bind task ids to executions one-to-one (the common case for Pre/
// Job/Post) can treat the counter as the execution id; callers with a
// different binding scheme supply their own lookup.
func ParseExecutionID(taskID string) (int64, bool) {
	parts := strings.Split(taskID, "_")
	if len(parts) < 2 {
		return 0, false
	}
	last := parts[len(parts)-1]
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
