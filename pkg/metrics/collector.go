package metrics

import (
	"time"

	"github.com/scalecore/scheduler/pkg/cleanup"
	"github.com/scalecore/scheduler/pkg/model"
	"github.com/scalecore/scheduler/pkg/runningjob"
)

// Collector periodically polls the running-job registry and the cleanup
// manager to publish gauges, adapted from the teacher's periodic
// metrics-collector shape (Start/Stop/ticker, one collect per concern).
type Collector struct {
	registry *runningjob.Manager
	cleanup  *cleanup.Manager
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(registry *runningjob.Manager, cleanupMgr *cleanup.Manager) *Collector {
	return &Collector{
		registry: registry,
		cleanup:  cleanupMgr,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectExecutionMetrics()
	c.collectCleanupMetrics()
}

func (c *Collector) collectExecutionMetrics() {
	all := c.registry.GetAll()

	counts := map[string]int{"running": 0, "finished": 0}
	for _, e := range all {
		if e.IsFinished() {
			counts["finished"]++
		} else {
			counts["running"]++
		}
	}

	for status, count := range counts {
		RunningExecutionsTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectCleanupMetrics() {
	for _, agentID := range c.cleanup.Agents() {
		CleanupBacklogByAgent.WithLabelValues(agentID).Set(float64(c.cleanup.PendingCount(agentID)))
	}
}

// RecordExecutionOutcome updates the completion/failure counters for one
// terminal execution. Nothing in this module calls it, and no
// TerminalEventSink implementation ships here.
func RecordExecutionOutcome(status model.JobExecutionStatus, errorCode string) {
	switch status {
	case model.StatusCompleted:
		ExecutionsCompletedTotal.Inc()
	case model.StatusFailed:
		ExecutionsFailedTotal.WithLabelValues(errorCode).Inc()
	}
}
