package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Execution metrics
	RunningExecutionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_running_executions_total",
			Help: "Number of in-memory running job executions by status",
		},
		[]string{"status"},
	)

	ExecutionsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_executions_completed_total",
			Help: "Total number of job executions reported complete",
		},
	)

	ExecutionsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_executions_failed_total",
			Help: "Total number of job executions reported failed, by error code",
		},
		[]string{"error_code"},
	)

	TaskUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_updates_total",
			Help: "Total number of task status updates routed, by status",
		},
		[]string{"status"},
	)

	TaskUpdatesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_task_updates_dropped_total",
			Help: "Total number of task status updates dropped for an unknown or stale execution",
		},
	)

	// Quarantine metrics
	NodesPausedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_nodes_paused_total",
			Help: "Number of nodes currently paused by the quarantine policy",
		},
	)

	NodeQuarantineEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_node_quarantine_events_total",
			Help: "Total number of times a node was quarantined",
		},
	)

	// Cleanup metrics
	CleanupBacklogByAgent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_cleanup_backlog",
			Help: "Number of finished executions awaiting cleanup, by agent",
		},
		[]string{"agent_id"},
	)

	CleanupTasksEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_cleanup_tasks_emitted_total",
			Help: "Total number of cleanup tasks emitted, by kind (initial/targeted)",
		},
		[]string{"kind"},
	)

	// Sync loop metrics
	SyncLoopTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_sync_loop_tick_duration_seconds",
			Help:    "Time taken for one database sync loop tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncLoopTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_sync_loop_ticks_total",
			Help: "Total number of database sync loop ticks completed",
		},
	)

	SyncLoopErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_sync_loop_errors_total",
			Help: "Total number of database sync loop ticks that errored",
		},
	)

	// Retry metrics
	DatabaseRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_database_retries_total",
			Help: "Total number of durable-write retry attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RunningExecutionsTotal,
		ExecutionsCompletedTotal,
		ExecutionsFailedTotal,
		TaskUpdatesTotal,
		TaskUpdatesDroppedTotal,
		NodesPausedTotal,
		NodeQuarantineEventsTotal,
		CleanupBacklogByAgent,
		CleanupTasksEmittedTotal,
		SyncLoopTickDuration,
		SyncLoopTicksTotal,
		SyncLoopErrorsTotal,
		DatabaseRetriesTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
