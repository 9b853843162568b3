package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index synchronization Prometheus metrics.
var (
	SyncDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexsync",
			Name:      "sync_documents_total",
			Help:      "Documents written to the search index",
		},
		[]string{"index", "type", "action"},
	)

	SyncBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indexsync",
			Name:      "sync_batch_duration_seconds",
			Help:      "Bulk write duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index", "type", "action"},
	)

	SyncErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexsync",
			Name:      "sync_errors_total",
			Help:      "Failed bulk writes",
		},
		[]string{"index", "type"},
	)

	BufferFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexsync",
			Name:      "buffer_flushes_total",
			Help:      "Change buffer flushes",
		},
		[]string{"type"},
	)

	BufferPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "indexsync",
			Name:      "buffer_pending",
			Help:      "Records waiting in the change buffer",
		},
		[]string{"type"},
	)

	MapperUnmappedHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexsync",
			Name:      "mapper_unmapped_hits_total",
			Help:      "Search hits passed through without a registered descriptor",
		},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers Prometheus sync metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(SyncDocumentsTotal)
	prometheus.MustRegister(SyncBatchDuration)
	prometheus.MustRegister(SyncErrorsTotal)
	prometheus.MustRegister(BufferFlushesTotal)
	prometheus.MustRegister(BufferPending)
	prometheus.MustRegister(MapperUnmappedHitsTotal)
	syncMetricsRegistered = true
}
