package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrovoice_jobs_enqueued_total",
		Help: "The total number of enqueued ingestion jobs",
	}, []string{"priority"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrovoice_jobs_processed_total",
		Help: "The total number of processed ingestion jobs",
	}, []string{"status"})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agrovoice_job_duration_seconds",
		Help:    "End-to-end duration of ingestion jobs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	RetrievalQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agrovoice_retrieval_queries_total",
		Help: "The total number of hybrid retrieval queries",
	})

	RetrievalDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agrovoice_retrieval_degraded_total",
		Help: "Retrieval queries that lost at least one sub-source",
	})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
