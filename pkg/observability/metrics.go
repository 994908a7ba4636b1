package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus metrics.
type Metrics struct {
	// Export metrics
	ExportedEvents    prometheus.Counter
	ExportedBatches   prometheus.Counter
	ExportFailures    prometheus.Counter
	ExportSkipped     prometheus.Counter
	ExportSuperseded  prometheus.Counter
	ExportDuration    prometheus.Histogram
	BookmarkAdvances  prometheus.Counter
	InvalidSinkEvents prometheus.Counter

	// Reconciliation metrics
	ReconcileRuns     prometheus.Counter
	ReconcileFailures prometheus.Counter
	ReindexedRecords  prometheus.Counter
	TouchedFamilies   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ExportedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_exported_events_total",
			Help: "Events delivered to the analytics sink",
		}),
		ExportedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_exported_batches_total",
			Help: "Batches delivered to the analytics sink",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_export_failures_total",
			Help: "Export runs aborted by a sink failure",
		}),
		ExportSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_export_skipped_events_total",
			Help: "Events dropped from batches (unresolvable record)",
		}),
		ExportSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_export_superseded_runs_total",
			Help: "Export runs aborted by the bookmark race guard",
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "statspipe_export_run_duration_seconds",
			Help:    "Duration of export runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BookmarkAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_bookmark_advances_total",
			Help: "Successful export bookmark advances",
		}),
		InvalidSinkEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_invalid_sink_events_total",
			Help: "Events the sink accepted the batch for but reported invalid",
		}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_reconcile_runs_total",
			Help: "Completed reconciliation runs",
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_reconcile_failures_total",
			Help: "Failed reconciliation runs",
		}),
		ReindexedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_reindexed_records_total",
			Help: "Record instances submitted for re-indexing",
		}),
		TouchedFamilies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statspipe_touched_families_total",
			Help: "Distinct record families found in reconciliation windows",
		}),
	}

	registry.MustRegister(
		m.ExportedEvents,
		m.ExportedBatches,
		m.ExportFailures,
		m.ExportSkipped,
		m.ExportSuperseded,
		m.ExportDuration,
		m.BookmarkAdvances,
		m.InvalidSinkEvents,
		m.ReconcileRuns,
		m.ReconcileFailures,
		m.ReindexedRecords,
		m.TouchedFamilies,
	)

	return m
}
