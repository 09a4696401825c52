// Package obsmetrics exposes the daemon's Prometheus metrics: scan
// throughput, plan projections, move outcomes, and API request counts.
package obsmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan metrics
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_scans_total",
			Help: "Total number of disk scans by outcome",
		},
		[]string{"outcome"},
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfectly_balanced_scan_duration_seconds",
			Help:    "Time taken to scan one disk, in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"disk"},
	)

	FilesCatalogedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_files_cataloged_total",
			Help: "Total number of files cataloged across all scans",
		},
	)

	BytesCatalogedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_bytes_cataloged_total",
			Help: "Total number of bytes cataloged across all scans",
		},
	)

	// Plan metrics
	PlansGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_plans_generated_total",
			Help: "Total number of balance plans generated",
		},
	)

	PlanGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfectly_balanced_plan_generation_duration_seconds",
			Help:    "Time taken to generate a balance plan, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProjectedImbalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfectly_balanced_projected_imbalance_ratio",
			Help: "Projected largest deviation of any disk's utilization from the target, for the most recent plan",
		},
	)

	PlannedMovesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfectly_balanced_planned_moves",
			Help: "Number of moves in the most recently generated plan",
		},
	)

	// Execution metrics
	MovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_moves_total",
			Help: "Total number of file moves by outcome",
		},
		[]string{"outcome"},
	)

	MoveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfectly_balanced_move_duration_seconds",
			Help:    "Time taken to move one file, in seconds",
			Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	BytesMovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_bytes_moved_total",
			Help: "Total number of bytes moved across all executions",
		},
	)

	ExecutionsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_executions_cancelled_total",
			Help: "Total number of plan executions stopped by cancellation",
		},
	)

	// Recovery metrics
	RecoveryDataLossTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_recovery_data_loss_total",
			Help: "Total number of moves recovered as data loss after an unclean shutdown",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfectly_balanced_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfectly_balanced_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SSESubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfectly_balanced_sse_subscribers",
			Help: "Number of currently connected event-stream subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ScansTotal,
		ScanDuration,
		FilesCatalogedTotal,
		BytesCatalogedTotal,
		PlansGeneratedTotal,
		PlanGenerationDuration,
		ProjectedImbalance,
		PlannedMovesTotal,
		MovesTotal,
		MoveDuration,
		BytesMovedTotal,
		ExecutionsCancelledTotal,
		RecoveryDataLossTotal,
		APIRequestsTotal,
		APIRequestDuration,
		SSESubscribersActive,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
