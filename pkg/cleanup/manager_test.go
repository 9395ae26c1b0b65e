package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/execution"
	"github.com/scalecore/scheduler/pkg/model"
	"github.com/scalecore/scheduler/pkg/task"
)

type noopStore struct{}

func (noopStore) HandleJobCompletion(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error {
	return nil
}

func (noopStore) HandleJobFailure(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata, classified *model.Error) error {
	return nil
}

func (noopStore) GetWithJobAndJobType(ctx context.Context, id int64) (*model.JobExecution, error) {
	return &model.JobExecution{ID: id}, nil
}

func (noopStore) CheckpointTasks(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error {
	return nil
}

func newFinishedExe(id int64) *execution.RunningJobExecution {
	cat := errcat.NewStatic()
	job := task.NewJobTask("scale_job_fw_1", "agent-1", "container-x", true, model.Resources{}, cat)
	exe := execution.New(execution.Config{
		ID: id, IsSystem: true, DockerVolumes: []string{"vol-x"},
		Tasks:        execution.PipelineTasks{Job: job},
		Store:        noopStore{},
		ErrorCatalog: cat,
	})
	exe.StartNextTask()
	exe.TaskUpdate(context.Background(), model.StatusUpdate{TaskID: job.ID(), Status: model.TaskStatusFinished, Timestamp: time.Now()})
	return exe
}

func TestManager_FirstEnqueueEmitsInitialCleanup(t *testing.T) {
	m := New("scale", task.NewAtomicCounter())
	m.Enqueue("agent-1", newFinishedExe(1))

	tasks := m.EmitPending()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsInitial())
}

func TestManager_SubsequentEnqueueEmitsTargetedCleanup(t *testing.T) {
	m := New("scale", task.NewAtomicCounter())
	m.Enqueue("agent-1", newFinishedExe(1))
	m.EmitPending() // drains the initial cleanup
	m.Completed("agent-1")

	m.Enqueue("agent-1", newFinishedExe(2))
	tasks := m.EmitPending()
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].IsInitial())
	assert.Contains(t, tasks[0].Command(), "container-x")
	assert.Contains(t, tasks[0].Command(), "vol-x")
}

func TestManager_PendingCountAndAgents(t *testing.T) {
	m := New("scale", task.NewAtomicCounter())
	m.Enqueue("agent-1", newFinishedExe(1))
	m.EmitPending()
	m.Completed("agent-1")

	m.Enqueue("agent-1", newFinishedExe(2))
	m.Enqueue("agent-1", newFinishedExe(3))

	assert.Equal(t, 2, m.PendingCount("agent-1"))
	assert.Equal(t, []string{"agent-1"}, m.Agents())

	m.Completed("agent-1")
	assert.Equal(t, 0, m.PendingCount("agent-1"))
}
