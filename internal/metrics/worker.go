package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workerExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "worker",
			Name:      "executions_total",
			Help:      "Total number of transaction executions by outcome",
		},
		[]string{"chain", "status"}, // chain name, SUBMITTED/REJECTED/FAILED
	)

	workerExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "worker",
			Name:      "execution_duration_seconds",
			Help:      "Time from pickup to a recorded outcome",
			Buckets:   prometheus.DefBuckets,
		},
	)

	workerReleasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "worker",
			Name:      "releases_total",
			Help:      "Total number of approval-blocked transactions released",
		},
	)

	workerQueueArrivalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "worker",
			Name:      "queue_arrivals_total",
			Help:      "Total number of new transactions seen by the queue client",
		},
	)

	workerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "worker",
			Name:      "errors_total",
			Help:      "Total number of worker errors",
		},
		[]string{"error_type"}, // store, network, wallet, execution
	)
)

// Error type constants for consistent labeling.
const (
	ErrorTypeStore     = "store"
	ErrorTypeNetwork   = "network"
	ErrorTypeWallet    = "wallet"
	ErrorTypeExecution = "execution"
)

// WorkerMetrics provides methods to update worker-related metrics.
type WorkerMetrics struct{}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{}
}

// RecordExecution records one executor outcome.
func (wm *WorkerMetrics) RecordExecution(chain, status string, duration time.Duration) {
	workerExecutionsTotal.WithLabelValues(chain, status).Inc()
	workerExecutionDuration.Observe(duration.Seconds())
}

// RecordRelease records one approval-dependency release.
func (wm *WorkerMetrics) RecordRelease() {
	workerReleasesTotal.Inc()
}

// RecordArrivals records new transactions detected by a queue poll.
func (wm *WorkerMetrics) RecordArrivals(count int) {
	workerQueueArrivalsTotal.Add(float64(count))
}

// RecordError records a worker error by class.
func (wm *WorkerMetrics) RecordError(errorType string) {
	workerErrorsTotal.WithLabelValues(errorType).Inc()
}
