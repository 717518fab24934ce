package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// On-chain status distribution per chain.
	reconcilerOnchainStatusTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "reconciler",
			Name:      "onchain_status_total",
			Help:      "Total number of transactions by status per chain",
		},
		[]string{"chain", "status"},
	)

	reconcilerLostTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "reconciler",
			Name:      "lost_transactions_total",
			Help:      "Total number of submitted transactions marked lost",
		},
		[]string{"chain"},
	)

	reconcilerProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "reconciler",
			Name:      "processing_duration_seconds",
			Help:      "Duration of reconciliation iterations",
			Buckets:   prometheus.DefBuckets,
		},
	)

	reconcilerTransactionsPerIteration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "reconciler",
			Name:      "transactions_per_iteration",
			Help:      "Number of submitted transactions checked in last iteration",
		},
	)

	reconcilerLastProcessingTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "reconciler",
			Name:      "last_processing_timestamp",
			Help:      "Timestamp of last successful reconciliation iteration",
		},
	)
)

// ReconcilerMetrics provides methods to update reconciler-related metrics.
type ReconcilerMetrics struct{}

func NewReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{}
}

// UpdateOnchainStatus updates the status counts per chain.
func (rm *ReconcilerMetrics) UpdateOnchainStatus(chain, status string, count int) {
	reconcilerOnchainStatusTotal.WithLabelValues(chain, status).Set(float64(count))
}

// RecordLostTransaction counts one submitted transaction marked lost.
func (rm *ReconcilerMetrics) RecordLostTransaction(chain string) {
	reconcilerLostTransactionsTotal.WithLabelValues(chain).Inc()
}

// RecordProcessingIteration records metrics for a reconciliation iteration.
func (rm *ReconcilerMetrics) RecordProcessingIteration(duration time.Duration, transactionCount int) {
	reconcilerProcessingDuration.Observe(duration.Seconds())
	reconcilerTransactionsPerIteration.Set(float64(transactionCount))
	reconcilerLastProcessingTimestamp.Set(float64(time.Now().Unix()))
}
