// Package cleanup implements CleanupManager (C4): it groups finished
// executions by agent and emits one CleanupTask per agent with pending
// work, the first being a broad initial cleanup and subsequent ones
// targeted at the specific containers/volumes of the executions queued
// since.
package cleanup

import (
	"sync"

	"github.com/scalecore/scheduler/pkg/execution"
	"github.com/scalecore/scheduler/pkg/task"
)

type agentState struct {
	needsInitialCleanup bool
	pendingExes         []*execution.RunningJobExecution
}

// Manager tracks per-agent cleanup state and constructs CleanupTasks.
type Manager struct {
	mu          sync.Mutex
	frameworkID string
	idGen       task.IDGenerator
	agents      map[string]*agentState
}

// New builds a CleanupManager. frameworkID is embedded in every cleanup
// task id per the §6 encoding; idGen supplies the monotonic counter.
func New(frameworkID string, idGen task.IDGenerator) *Manager {
	return &Manager{
		frameworkID: frameworkID,
		idGen:       idGen,
		agents:      make(map[string]*agentState),
	}
}

// Enqueue accepts a finished execution and groups it under its agent,
// marking that agent as needing an initial cleanup if it has never been
// seen before.
func (m *Manager) Enqueue(agentID string, e *execution.RunningJobExecution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.agents[agentID]
	if !ok {
		st = &agentState{needsInitialCleanup: true}
		m.agents[agentID] = st
	}
	st.pendingExes = append(st.pendingExes, e)
}

// EmitPending builds exactly one CleanupTask per agent that still has
// pending work, returning them in no particular order. The first task
// emitted for an agent is the initial cleanup; subsequent calls while
// pending work remains produce targeted tasks.
func (m *Manager) EmitPending() []*task.CleanupTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []*task.CleanupTask
	for agentID, st := range m.agents {
		if len(st.pendingExes) == 0 && !st.needsInitialCleanup {
			continue
		}

		if st.needsInitialCleanup {
			tasks = append(tasks, task.NewCleanupTask(m.frameworkID, agentID, m.idGen, nil))
			st.needsInitialCleanup = false
			continue
		}

		targets := make([]task.CleanupTarget, 0, len(st.pendingExes))
		for _, e := range st.pendingExes {
			targets = append(targets, task.CleanupTarget{
				ContainerNames: e.GetContainerNames(),
				VolumeNames:    e.DockerVolumes(),
			})
		}
		tasks = append(tasks, task.NewCleanupTask(m.frameworkID, agentID, m.idGen, targets))
	}
	return tasks
}

// Completed clears an agent's pending list after its cleanup task finished
// successfully.
func (m *Manager) Completed(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.agents[agentID]; ok {
		st.pendingExes = nil
	}
}

// PendingCount returns the number of executions awaiting cleanup for an
// agent, for metrics.
func (m *Manager) PendingCount(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.agents[agentID]; ok {
		return len(st.pendingExes)
	}
	return 0
}

// Agents returns the set of agent ids with any tracked state, for metrics.
func (m *Manager) Agents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	return ids
}
