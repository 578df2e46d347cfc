package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to get metric value from a gauge
func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := gauge.Write(metric)
	require.NoError(t, err)
	return metric.GetGauge().GetValue()
}

// Helper function to get metric value from a counter
func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := counter.Write(metric)
	require.NoError(t, err)
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, counterVec.WithLabelValues(labels...))
}

func TestRecordJobClaimed(t *testing.T) {
	before := getCounterVecValue(t, JobsClaimedTotal, "transcode")
	RecordJobClaimed("transcode")
	RecordJobClaimed("transcode")
	assert.Equal(t, before+2, getCounterVecValue(t, JobsClaimedTotal, "transcode"))

	// A different job type increments its own series only.
	cleanupBefore := getCounterVecValue(t, JobsClaimedTotal, "cleanup")
	RecordJobClaimed("cleanup")
	assert.Equal(t, cleanupBefore+1, getCounterVecValue(t, JobsClaimedTotal, "cleanup"))
}

func TestRecordJobOutcomeCounters(t *testing.T) {
	completedBefore := getCounterVecValue(t, JobsCompletedTotal, "transcode")
	failedBefore := getCounterVecValue(t, JobsFailedTotal, "transcode")

	RecordJobCompleted("transcode")
	RecordJobFailed("transcode")

	assert.Equal(t, completedBefore+1, getCounterVecValue(t, JobsCompletedTotal, "transcode"))
	assert.Equal(t, failedBefore+1, getCounterVecValue(t, JobsFailedTotal, "transcode"))
}

func TestSetLiveNodes(t *testing.T) {
	SetLiveNodes(3)
	assert.Equal(t, 3.0, getGaugeValue(t, LiveNodes))
	SetLiveNodes(0)
	assert.Equal(t, 0.0, getGaugeValue(t, LiveNodes))
}

func TestRecordArrJobOutcome(t *testing.T) {
	before := getCounterVecValue(t, ArrJobOutcomesTotal, "sonarr", "completed")
	RecordArrJobOutcome("sonarr", "completed")
	assert.Equal(t, before+1, getCounterVecValue(t, ArrJobOutcomesTotal, "sonarr", "completed"))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("radarr", 2)
	metric := &dto.Metric{}
	require.NoError(t, CircuitBreakerState.WithLabelValues("radarr").Write(metric))
	assert.Equal(t, 2.0, metric.GetGauge().GetValue())
}

func TestObserveScanDuration(t *testing.T) {
	ObserveScanDuration("internal", "media", 12.5)

	metric := &dto.Metric{}
	hist, err := ScanDurationSeconds.GetMetricWithLabelValues("internal", "media")
	require.NoError(t, err)
	require.NoError(t, hist.(prometheus.Histogram).Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
}
