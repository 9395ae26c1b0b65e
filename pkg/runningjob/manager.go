// Package runningjob implements RunningJobManager (C3): a concurrent
// registry of every live RunningJobExecution, keyed by execution id.
package runningjob

import (
	"sync"

	"github.com/scalecore/scheduler/pkg/execution"
)

// Manager is a concurrent mapping from execution id to RunningJobExecution.
type Manager struct {
	mu    sync.RWMutex
	byID  map[int64]*execution.RunningJobExecution
}

// New returns an empty registry.
func New() *Manager {
	return &Manager{byID: make(map[int64]*execution.RunningJobExecution)}
}

// Add registers a running execution.
func (m *Manager) Add(e *execution.RunningJobExecution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[e.ID()] = e
}

// Remove drops an execution from the registry.
func (m *Manager) Remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Get returns the execution for id, or nil if not registered.
func (m *Manager) Get(id int64) *execution.RunningJobExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// GetAll returns a stable snapshot of every registered execution, copied
// under lock so the sync loop's iteration cannot observe mid-flight
// registry mutations.
func (m *Manager) GetAll() []*execution.RunningJobExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*execution.RunningJobExecution, 0, len(m.byID))
	for _, e := range m.byID {
		all = append(all, e)
	}
	return all
}

// Len returns the number of registered executions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
