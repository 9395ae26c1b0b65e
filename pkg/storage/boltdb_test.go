package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/model"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir(), errcat.NewStatic())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_GetLockedReturnsRowAndReleasesLock(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 1, Status: model.StatusRunning}))

	row, release, err := s.GetLocked(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.ID)
	release()

	// lock must be reusable after release
	row2, release2, err := s.GetLocked(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row2.ID)
	release2()
}

func TestBoltStore_HandleJobCompletion_PersistsStatusAndTasks(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 1, Status: model.StatusRunning}))

	started := time.Now().Add(-time.Minute)
	tasks := []model.TaskMetadata{
		{TaskID: "t1", TaskType: "job", Started: &started},
	}
	when := time.Now()
	require.NoError(t, s.HandleJobCompletion(context.Background(), 1, when, tasks))

	row, err := s.GetWithJobAndJobType(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, row.Status)
	require.Len(t, row.Tasks, 1)
	assert.Equal(t, "t1", row.Tasks[0].TaskID)
	require.NotNil(t, row.Ended)
	assert.WithinDuration(t, when, *row.Ended, time.Second)
	require.NotNil(t, row.Started)
	assert.WithinDuration(t, started, *row.Started, time.Second)
}

func TestBoltStore_HandleJobFailure_PersistsErrorCodeAndTasks(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 1, Status: model.StatusRunning}))

	tasks := []model.TaskMetadata{{TaskID: "t1", TaskType: "job"}}
	classified := &model.Error{Code: errcat.CodeNodeLost, Category: model.CategorySystem}
	require.NoError(t, s.HandleJobFailure(context.Background(), 1, time.Now(), tasks, classified))

	row, err := s.GetWithJobAndJobType(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, row.Status)
	require.NotNil(t, row.ErrorID)
	assert.Equal(t, errcat.CodeNodeLost, *row.ErrorID)
	require.Len(t, row.Tasks, 1)
}

func TestBoltStore_CheckpointTasks_PersistsTasksWithoutChangingStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 1, Status: model.StatusCanceled}))

	tasks := []model.TaskMetadata{{TaskID: "t1", TaskType: "pre"}}
	when := time.Now()
	require.NoError(t, s.CheckpointTasks(context.Background(), 1, when, tasks))

	row, err := s.GetWithJobAndJobType(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, row.Status, "checkpointing must not alter the row's terminal status")
	require.Len(t, row.Tasks, 1)
	assert.Equal(t, "t1", row.Tasks[0].TaskID)
	require.NotNil(t, row.Ended)
	assert.WithinDuration(t, when, *row.Ended, time.Second)
}

func TestBoltStore_CountRecentSystemFailures_CountsDistinctJobsOnly(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	errID := errcat.CodeNodeLost

	for _, row := range []*model.JobExecution{
		{ID: 1, JobID: 100, NodeID: "n1", Status: model.StatusFailed, ErrorID: &errID, Ended: ptr(now)},
		{ID: 2, JobID: 100, NodeID: "n1", Status: model.StatusFailed, ErrorID: &errID, Ended: ptr(now)}, // same job, should not double count
		{ID: 3, JobID: 101, NodeID: "n1", Status: model.StatusFailed, ErrorID: &errID, Ended: ptr(now)},
		{ID: 4, JobID: 102, NodeID: "n2", Status: model.StatusFailed, ErrorID: &errID, Ended: ptr(now)}, // different node
		{ID: 5, JobID: 103, NodeID: "n1", Status: model.StatusFailed, ErrorID: &errID, Ended: ptr(now.Add(-time.Hour))}, // too old
	} {
		require.NoError(t, s.PutJobExecution(row))
	}

	count, err := s.CountRecentSystemFailures(context.Background(), "n1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBoltStore_IsTimedOut(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	started := now.Add(-time.Hour)

	assert.False(t, s.IsTimedOut(&model.JobExecution{Timeout: 0, Started: &started}, now), "zero timeout never fires")
	assert.False(t, s.IsTimedOut(&model.JobExecution{Timeout: time.Minute, Started: nil}, now), "unstarted row never times out")
	assert.True(t, s.IsTimedOut(&model.JobExecution{Timeout: time.Minute, Started: &started}, now))
	assert.False(t, s.IsTimedOut(&model.JobExecution{Timeout: 2 * time.Hour, Started: &started}, now))
}

func TestBoltStore_ListByIDs_SkipsMissingRows(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 1}))
	require.NoError(t, s.PutJobExecution(&model.JobExecution{ID: 3}))

	rows, err := s.ListByIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(3), rows[1].ID)
}

func TestBoltStore_GetNodePutNodePauseNode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutNode(&model.Node{ID: "n1", Hostname: "host-1"}))

	node, err := s.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	assert.False(t, node.IsPaused)

	require.NoError(t, s.PauseNode(context.Background(), "n1", "too many system failures"))

	node, err = s.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	assert.True(t, node.IsPaused)
	assert.True(t, node.IsPausedErrors)
	assert.Equal(t, "too many system failures", node.PauseReason)
}

func TestBoltStore_GetNode_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode(context.Background(), "missing")
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
