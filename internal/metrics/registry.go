package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Service names used to select which metric sets a binary registers.
const (
	ServiceWorker     = "worker"
	ServiceReconciler = "reconciler"
	ServiceHTTP       = "http"
)

// RegisterMetrics registers metrics for the specified services.
func RegisterMetrics(services []string, logger *logrus.Logger) {
	// Always register Go and process metrics.
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case ServiceHTTP:
			registerHTTPMetrics(logger)
		case ServiceWorker:
			registerWorkerMetrics(logger)
		case ServiceReconciler:
			registerReconcilerMetrics(logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

// registerIfNotExists registers a collector if it's not already registered.
func registerIfNotExists(collector prometheus.Collector, name string, logger *logrus.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

func registerHTTPMetrics(logger *logrus.Logger) {
	registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
	registerIfNotExists(httpErrorsTotal, "http_errors_total", logger)
}

func registerWorkerMetrics(logger *logrus.Logger) {
	registerIfNotExists(workerExecutionsTotal, "worker_executions_total", logger)
	registerIfNotExists(workerExecutionDuration, "worker_execution_duration", logger)
	registerIfNotExists(workerReleasesTotal, "worker_releases_total", logger)
	registerIfNotExists(workerQueueArrivalsTotal, "worker_queue_arrivals_total", logger)
	registerIfNotExists(workerErrorsTotal, "worker_errors_total", logger)
}

func registerReconcilerMetrics(logger *logrus.Logger) {
	registerIfNotExists(reconcilerOnchainStatusTotal, "reconciler_onchain_status_total", logger)
	registerIfNotExists(reconcilerLostTransactionsTotal, "reconciler_lost_transactions_total", logger)
	registerIfNotExists(reconcilerProcessingDuration, "reconciler_processing_duration", logger)
	registerIfNotExists(reconcilerTransactionsPerIteration, "reconciler_transactions_per_iteration", logger)
	registerIfNotExists(reconcilerLastProcessingTimestamp, "reconciler_last_processing_timestamp", logger)
}
