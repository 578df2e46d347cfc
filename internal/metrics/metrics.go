// Package metrics provides Prometheus metrics for the controller,
// scraped at /metrics (spec.md SPEC_FULL §3, §6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsClaimedTotal counts successful ClaimOneJob dispatches by job type.
	JobsClaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_jobs_claimed_total",
		Help: "Total number of jobs claimed by workers, by job type.",
	}, []string{"job_type"})

	// JobsCompletedTotal counts terminal successful completions by job type.
	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_jobs_completed_total",
		Help: "Total number of jobs completed successfully, by job type.",
	}, []string{"job_type"})

	// JobsFailedTotal counts terminal failures by job type.
	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_jobs_failed_total",
		Help: "Total number of jobs that ended in failure, by job type.",
	}, []string{"job_type"})

	// LiveNodes tracks the current count of nodes with a fresh heartbeat.
	LiveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_live_nodes",
		Help: "Current number of worker nodes with a heartbeat inside the freshness window.",
	})

	// ScanDurationSeconds observes wall-clock duration of each scan kind.
	ScanDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_scan_duration_seconds",
		Help:    "Duration of a completed scan, by source and scan type.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
	}, []string{"source", "scan_type"})

	// ArrJobOutcomesTotal counts ArrJobProcessor dispatch outcomes.
	ArrJobOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_arr_job_outcomes_total",
		Help: "Total number of internal rename job outcomes, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// CircuitBreakerState reports each provider breaker's state as a gauge:
	// 0=closed, 1=half-open, 2=open (mirrors gobreaker.State's int value).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dashboard_circuit_breaker_state",
		Help: "Current circuit breaker state per provider (0=closed, 1=half-open, 2=open).",
	}, []string{"provider"})
)

// RecordJobClaimed increments the claimed counter for jobType.
func RecordJobClaimed(jobType string) {
	JobsClaimedTotal.WithLabelValues(jobType).Inc()
}

// RecordJobCompleted increments the completed counter for jobType.
func RecordJobCompleted(jobType string) {
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

// RecordJobFailed increments the failed counter for jobType.
func RecordJobFailed(jobType string) {
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// SetLiveNodes sets the live node gauge.
func SetLiveNodes(count float64) {
	LiveNodes.Set(count)
}

// ObserveScanDuration records how long a completed scan took.
func ObserveScanDuration(source, scanType string, seconds float64) {
	ScanDurationSeconds.WithLabelValues(source, scanType).Observe(seconds)
}

// RecordArrJobOutcome increments the arr-job outcome counter.
func RecordArrJobOutcome(provider, outcome string) {
	ArrJobOutcomesTotal.WithLabelValues(provider, outcome).Inc()
}

// SetCircuitBreakerState records a provider breaker's current state.
func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
