package task

import (
	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/model"
)

// PreTask materializes input data for non-system jobs.
type PreTask struct{ base }

// NewPreTask builds a PreTask for the given job execution.
func NewPreTask(id, agentID, containerName string, usesDocker bool, res model.Resources, cat errcat.Catalog) *PreTask {
	return &PreTask{base: newBase(id, KindPre, "pre", agentID, containerName, usesDocker, res, cat)}
}

func (t *PreTask) Update(u model.StatusUpdate)                   { t.update(u) }
func (t *PreTask) Complete(u model.StatusUpdate) bool             { return t.complete(u) }
func (t *PreTask) DetermineError(u model.StatusUpdate) *model.Error { return t.considerGeneralError(u) }
func (t *PreTask) PopulateJobExeModel(row *model.TaskMetadata)    { t.populateJobExeModel(row) }
func (t *PreTask) RefreshCachedValues(row *model.JobExecution)    { t.refreshCachedValues(row) }

// JobTask is the user job itself; always present.
type JobTask struct{ base }

// NewJobTask builds the JobTask for the given job execution.
func NewJobTask(id, agentID, containerName string, usesDocker bool, res model.Resources, cat errcat.Catalog) *JobTask {
	return &JobTask{base: newBase(id, KindJob, "job", agentID, containerName, usesDocker, res, cat)}
}

func (t *JobTask) Update(u model.StatusUpdate)                   { t.update(u) }
func (t *JobTask) Complete(u model.StatusUpdate) bool             { return t.complete(u) }
func (t *JobTask) DetermineError(u model.StatusUpdate) *model.Error { return t.considerGeneralError(u) }
func (t *JobTask) PopulateJobExeModel(row *model.TaskMetadata)    { t.populateJobExeModel(row) }
func (t *JobTask) RefreshCachedValues(row *model.JobExecution)    { t.refreshCachedValues(row) }

// PostTask archives output and records results for non-system jobs.
type PostTask struct{ base }

// NewPostTask builds a PostTask for the given job execution.
func NewPostTask(id, agentID, containerName string, usesDocker bool, res model.Resources, cat errcat.Catalog) *PostTask {
	return &PostTask{base: newBase(id, KindPost, "post", agentID, containerName, usesDocker, res, cat)}
}

func (t *PostTask) Update(u model.StatusUpdate)                   { t.update(u) }
func (t *PostTask) Complete(u model.StatusUpdate) bool             { return t.complete(u) }
func (t *PostTask) DetermineError(u model.StatusUpdate) *model.Error { return t.considerGeneralError(u) }
func (t *PostTask) PopulateJobExeModel(row *model.TaskMetadata)   { t.populateJobExeModel(row) }
func (t *PostTask) RefreshCachedValues(row *model.JobExecution)   { t.refreshCachedValues(row) }

var (
	_ Task = (*PreTask)(nil)
	_ Task = (*JobTask)(nil)
	_ Task = (*PostTask)(nil)
)
