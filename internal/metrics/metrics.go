package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listOperationsTotal  *prometheus.CounterVec
	storeOperationsTotal *prometheus.CounterVec
	recordsSkippedTotal  *prometheus.CounterVec
	transportErrorsTotal *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Init initializes all Prometheus metrics.
// This should be called once at startup if metrics are enabled; repositories
// record through nil-safe helpers, so skipping Init disables collection.
func Init() {
	metricsOnce.Do(func() {
		listOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyops_list_operations_total",
				Help: "Total number of key-ring list operations",
			},
			[]string{"store"},
		)

		storeOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyops_store_operations_total",
				Help: "Total number of key documents stored",
			},
			[]string{"store"},
		)

		recordsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyops_records_skipped_total",
				Help: "Total number of malformed records skipped during listing",
			},
			[]string{"store"},
		)

		transportErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyops_transport_errors_total",
				Help: "Total number of remote store calls that failed",
			},
			[]string{"store", "op"},
		)

		metricsRegistered = true
	})
}

// RecordList records one completed list operation.
func RecordList(store string) {
	if !metricsRegistered || listOperationsTotal == nil {
		return
	}
	listOperationsTotal.WithLabelValues(store).Inc()
}

// RecordStore records one stored key document.
func RecordStore(store string) {
	if !metricsRegistered || storeOperationsTotal == nil {
		return
	}
	storeOperationsTotal.WithLabelValues(store).Inc()
}

// RecordSkipped records one malformed record dropped from a listing.
func RecordSkipped(store string) {
	if !metricsRegistered || recordsSkippedTotal == nil {
		return
	}
	recordsSkippedTotal.WithLabelValues(store).Inc()
}

// RecordTransportError records one failed remote call.
func RecordTransportError(store, op string) {
	if !metricsRegistered || transportErrorsTotal == nil {
		return
	}
	transportErrorsTotal.WithLabelValues(store, op).Inc()
}
