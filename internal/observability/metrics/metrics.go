package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "opsboard_"

var (
	registerOnce sync.Once

	ingestEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "ingest_events_total",
		Help: "Metric events accepted by the intake, by outcome.",
	}, []string{"outcome"})

	ingestBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "ingest_batches_total",
		Help: "Event batches accepted by the intake.",
	})

	ingestErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "ingest_errors_total",
		Help: "Event batches rejected by validation or storage.",
	})

	recomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricPrefix + "rollup_recompute_seconds",
		Help:    "Rollup recompute duration per org span.",
		Buckets: prometheus.DefBuckets,
	})

	rollupRowsUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "rollup_rows_upserted_total",
		Help: "Daily rollup rows written by recompute runs.",
	})

	anomaliesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "anomalies_created_total",
		Help: "Anomalies opened by the detector.",
	})

	exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "exports_total",
		Help: "Export downloads served, by format.",
	}, []string{"format"})

	queueSpansProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "queue_spans_processed_total",
		Help: "Recompute queue spans drained to completion.",
	})
)

// Register installs the service collectors into the given registerer.
// Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			ingestEventsTotal,
			ingestBatchesTotal,
			ingestErrorsTotal,
			recomputeDuration,
			rollupRowsUpserted,
			anomaliesCreatedTotal,
			exportsTotal,
			queueSpansProcessed,
		)
	})
}

// ObserveIngest records a processed batch with created/duplicate splits.
func ObserveIngest(created, existing int) {
	ingestBatchesTotal.Inc()
	ingestEventsTotal.WithLabelValues("created").Add(float64(created))
	ingestEventsTotal.WithLabelValues("duplicate").Add(float64(existing))
}

// IncIngestError counts a rejected batch.
func IncIngestError() {
	ingestErrorsTotal.Inc()
}

// ObserveRecompute records a recompute run.
func ObserveRecompute(duration time.Duration, rows int) {
	recomputeDuration.Observe(duration.Seconds())
	rollupRowsUpserted.Add(float64(rows))
}

// AddAnomaliesCreated counts anomalies opened by a detector pass.
func AddAnomaliesCreated(n int) {
	if n <= 0 {
		return
	}
	anomaliesCreatedTotal.Add(float64(n))
}

// ObserveExport counts a served export download.
func ObserveExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}

// IncQueueSpanProcessed counts a drained queue span.
func IncQueueSpanProcessed() {
	queueSpansProcessed.Inc()
}

// RegisterDBMetrics exposes connection pool gauges for the shared handle.
func RegisterDBMetrics(reg prometheus.Registerer, db *sql.DB) {
	if db == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: metricPrefix + "db_open_connections",
		Help: "Open connections in the shared database pool.",
	}, func() float64 {
		return float64(db.Stats().OpenConnections)
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: metricPrefix + "db_in_use_connections",
		Help: "Connections currently executing statements.",
	}, func() float64 {
		return float64(db.Stats().InUse)
	}))
}
