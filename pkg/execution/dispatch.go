package execution

import (
	"context"
	"time"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/events"
	"github.com/scalecore/scheduler/pkg/model"
	"github.com/scalecore/scheduler/pkg/task"
)

// TaskUpdate dispatches an incoming status update to the private handler
// for its status. Per spec §4.2, rules apply only when the update's task id
// matches the current task id; otherwise the update is silently dropped
// (P4).
func (e *RunningJobExecution) TaskUpdate(ctx context.Context, u model.StatusUpdate) {
	e.mu.Lock()
	matches := e.currentTask != nil && e.currentTask.ID() == u.TaskID
	e.mu.Unlock()
	if !matches {
		return
	}

	switch u.Status {
	case model.TaskStatusRunning:
		e.taskStart(u)
	case model.TaskStatusFinished:
		e.taskComplete(ctx, u)
	case model.TaskStatusLost:
		e.taskLost(u)
	case model.TaskStatusFailed, model.TaskStatusKilled:
		e.taskFail(ctx, u)
	}
}

// taskStart applies a RUNNING transition. No durable write: the cluster
// manager is the source of truth and completion is recorded lazily.
func (e *RunningJobExecution) taskStart(u model.StatusUpdate) {
	e.mu.Lock()
	cur := e.currentTask
	e.mu.Unlock()
	if cur == nil || cur.ID() != u.TaskID {
		return
	}
	cur.Update(u)
}

// taskComplete applies terminal success. If the completed task reports
// needsRefresh and tasks remain, the durable row is re-read and each
// remaining task's cached values are refreshed; if none remain, the whole
// execution is reported complete to the store.
func (e *RunningJobExecution) taskComplete(ctx context.Context, u model.StatusUpdate) {
	e.mu.Lock()
	cur := e.currentTask
	e.mu.Unlock()
	if cur == nil || cur.ID() != u.TaskID {
		return
	}

	needsRefresh := cur.Complete(u)

	e.mu.Lock()
	remaining := len(e.remainingTasks)
	e.mu.Unlock()

	if needsRefresh && remaining > 0 {
		row, err := e.store.GetWithJobAndJobType(ctx, e.id)
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to refresh job execution row after task completion")
		} else {
			e.mu.Lock()
			for _, t := range e.remainingTasks {
				t.RefreshCachedValues(row)
			}
			e.mu.Unlock()
		}
	}

	e.publish(events.EventTaskCompleted, u.TaskID)

	if remaining == 0 {
		e.mu.Lock()
		meta := e.allTaskMetadata()
		e.mu.Unlock()

		when := u.Timestamp
		err := e.retryer.Do(ctx, func() error {
			return e.store.HandleJobCompletion(ctx, e.id, when, meta)
		})
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to record job completion after retries")
		}
		if e.sink != nil {
			if err := e.sink.Complete(e.id, when, meta); err != nil {
				e.logger.Error().Err(err).Msg("terminal event sink rejected completion")
			}
		}
		e.publish(events.EventExecutionFinished, "execution completed")
	}

	e.mu.Lock()
	if e.currentTask != nil && e.currentTask.ID() == u.TaskID {
		e.currentTask = nil
	}
	e.mu.Unlock()
}

// taskLost re-prepends the current task to the remaining queue; no durable
// write, the task will be re-offered.
func (e *RunningJobExecution) taskLost(u model.StatusUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.currentTask
	if cur == nil || cur.ID() != u.TaskID {
		return
	}
	cur.Update(u)
	e.remainingTasks = append([]task.Task{cur}, e.remainingTasks...)
	e.currentTask = nil
}

// taskFail classifies the failure, records it durably along with every
// task's metadata, consults the quarantine policy, and discards any
// remaining tasks: once any task fails, the whole execution is terminal.
func (e *RunningJobExecution) taskFail(ctx context.Context, u model.StatusUpdate) {
	e.mu.Lock()
	cur := e.currentTask
	e.mu.Unlock()
	if cur == nil || cur.ID() != u.TaskID {
		return
	}

	classified := cur.DetermineError(u)
	if classified == nil {
		classified = e.errCatalog.ByCode(errcat.CodeUnknown)
	}

	e.mu.Lock()
	meta := e.allTaskMetadata()
	e.mu.Unlock()

	when := u.Timestamp
	err := e.retryer.Do(ctx, func() error {
		return e.store.HandleJobFailure(ctx, e.id, when, meta, classified)
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to record job failure after retries")
	}
	if e.sink != nil {
		if serr := e.sink.Fail(e.id, when, meta, classified); serr != nil {
			e.logger.Error().Err(serr).Msg("terminal event sink rejected failure")
		}
	}

	e.publish(events.EventTaskFailed, u.TaskID)
	e.publish(events.EventExecutionFinished, "execution failed")

	if classified.Category == model.CategorySystem && e.quarantine != nil {
		row, rerr := e.store.GetWithJobAndJobType(ctx, e.id)
		if rerr != nil {
			e.logger.Error().Err(rerr).Msg("failed to read job execution row for quarantine evaluation")
		} else if qerr := e.quarantine.Evaluate(ctx, row, classified); qerr != nil {
			e.logger.Error().Err(qerr).Msg("quarantine evaluation failed")
		}
	}

	e.mu.Lock()
	e.currentTask = nil
	e.remainingTasks = nil
	e.mu.Unlock()
}

// ExecutionCanceled checkpoints every task's final metadata durably, then
// clears in-memory state. Returns the prior current task so the caller can
// kill it.
func (e *RunningJobExecution) ExecutionCanceled(ctx context.Context) task.Task {
	e.mu.Lock()
	prior := e.currentTask
	meta := e.allTaskMetadata()
	e.mu.Unlock()

	when := time.Now()
	err := e.retryer.Do(ctx, func() error {
		return e.store.CheckpointTasks(ctx, e.id, when, meta)
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to checkpoint canceled execution after retries")
	}

	e.mu.Lock()
	e.currentTask = nil
	e.remainingTasks = nil
	e.mu.Unlock()
	e.publish(events.EventExecutionFinished, "execution canceled")

	return prior
}

// ExecutionLost reports failure with node-lost and clears in-memory state.
// Returns the prior current task so the caller can kill it.
func (e *RunningJobExecution) ExecutionLost(ctx context.Context, when time.Time) task.Task {
	return e.reportSystemFailure(ctx, when, errcat.CodeNodeLost)
}

// ExecutionTimedOut reports failure with timeout and clears in-memory
// state. Returns the prior current task so the caller can kill it.
func (e *RunningJobExecution) ExecutionTimedOut(ctx context.Context, when time.Time) task.Task {
	return e.reportSystemFailure(ctx, when, errcat.CodeTimeout)
}

func (e *RunningJobExecution) reportSystemFailure(ctx context.Context, when time.Time, code string) task.Task {
	e.mu.Lock()
	prior := e.currentTask
	meta := e.allTaskMetadata()
	e.mu.Unlock()

	classified := e.errCatalog.ByCode(code)
	err := e.retryer.Do(ctx, func() error {
		return e.store.HandleJobFailure(ctx, e.id, when, meta, classified)
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to record system failure after retries")
	}
	if e.sink != nil {
		if serr := e.sink.Fail(e.id, when, meta, classified); serr != nil {
			e.logger.Error().Err(serr).Msg("terminal event sink rejected failure")
		}
	}

	e.mu.Lock()
	e.currentTask = nil
	e.remainingTasks = nil
	e.mu.Unlock()
	e.publish(events.EventExecutionFinished, "execution failed: "+code)

	return prior
}
