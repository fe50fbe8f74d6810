package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_ingest_jobs_total",
			Help: "Total number of ingestion jobs by terminal status.",
		},
		[]string{"status"},
	)
	ingestFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightdeck_ingest_files_total",
			Help: "Total number of files submitted for ingestion.",
		},
	)
	ingestRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightdeck_ingest_rows_total",
			Help: "Total number of rows loaded into warehouse tables.",
		},
	)
	ingestWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightdeck_ingest_warnings_total",
			Help: "Total number of per-file ingestion warnings.",
		},
	)
	ingestJobLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightdeck_ingest_job_latency_ms",
			Help:    "Ingestion job latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	queryExecutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightdeck_query_executions_total",
			Help: "Total number of executed read-only queries.",
		},
	)
	queryRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightdeck_query_rejections_total",
			Help: "Total number of queries rejected by the safety gate.",
		},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightdeck_query_latency_ms",
			Help:    "Query execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		ingestJobsTotal,
		ingestFilesTotal,
		ingestRowsTotal,
		ingestWarningsTotal,
		ingestJobLatencyMs,
		queryExecutionsTotal,
		queryRejectionsTotal,
		queryLatencyMs,
	)
}

func ObserveIngestJob(status string, files int, rows int64, warnings int, elapsed time.Duration) {
	ingestJobsTotal.WithLabelValues(status).Inc()
	ingestFilesTotal.Add(float64(files))
	if rows > 0 {
		ingestRowsTotal.Add(float64(rows))
	}
	if warnings > 0 {
		ingestWarningsTotal.Add(float64(warnings))
	}
	ingestJobLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecuted(elapsed time.Duration) {
	queryExecutionsTotal.Inc()
	queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementQueryRejected() {
	queryRejectionsTotal.Inc()
}
