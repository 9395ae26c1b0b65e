package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer_StartsImmediately(t *testing.T) {
	timer := NewTimer()

	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.WithinDuration(t, time.Now(), timer.start, 50*time.Millisecond)
}

func TestTimer_Duration_GrowsMonotonically(t *testing.T) {
	timer := NewTimer()

	time.Sleep(10 * time.Millisecond)
	first := timer.Duration()

	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()

	assert.Greater(t, second, first)
}

// TestTimer_ObserveDuration_RecordsToSyncLoopHistogram exercises Timer the
// way syncloop.Loop.run uses it: one NewTimer per tick, observed into the
// sync loop's own duration histogram.
func TestTimer_ObserveDuration_RecordsToSyncLoopHistogram(t *testing.T) {
	before := syncLoopTickSampleCount(t)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(SyncLoopTickDuration)

	after := syncLoopTickSampleCount(t)
	assert.Equal(t, before+1, after, "ObserveDuration should add one sample to the histogram")
}

// syncLoopTickSampleCount reads the sample count of SyncLoopTickDuration
// from the default registry. testutil.CollectAndCount counts collected
// series, which stays at one for a plain histogram however many samples it
// holds.
func syncLoopTickSampleCount(t *testing.T) uint64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "scheduler_sync_loop_tick_duration_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("scheduler_sync_loop_tick_duration_seconds is not registered")
	return 0
}

func TestTimer_ObserveDurationVec_RecordsUnderLabel(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_timer_observe_duration_vec_seconds",
			Help:    "scratch histogram for TestTimer_ObserveDurationVec_RecordsUnderLabel",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(vec, "reconcile")

	count := testutil.CollectAndCount(vec, "test_timer_observe_duration_vec_seconds")
	assert.Equal(t, 1, count)
}

func TestTimer_Duration_NeverNegative(t *testing.T) {
	timer := NewTimer()
	assert.GreaterOrEqual(t, timer.Duration(), time.Duration(0))
}
