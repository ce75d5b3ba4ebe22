// Package metrics exposes Prometheus instrumentation for crawls and ingests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagegest"

var (
	PagesCrawled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_crawled_total",
		Help:      "Viewer pages visited by the crawler",
	})

	EmptyPages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "empty_pages_total",
		Help:      "Visited pages that produced no paragraphs",
	})

	CrawlStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_stops_total",
		Help:      "Finished crawls by stop reason",
	}, []string{"reason"})

	SeamOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seam_outcomes_total",
		Help:      "Page boundary repairs by outcome (merged, trimmed, dropped, untouched)",
	}, []string{"outcome"})

	ChunksFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_finalized_total",
		Help:      "Chunks finalized by the chunker before deduplication",
	})

	ChunksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_committed_total",
		Help:      "Chunks embedded and written to storage",
	})

	CommitBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commit_batches_total",
		Help:      "Commit batches by result",
	}, []string{"result"})

	ChunkTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chunk_tokens",
		Help:      "Estimated token count per committed chunk",
		Buckets:   []float64{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192},
	})

	EmbedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "embed_duration_seconds",
		Help:      "Latency of embedding calls",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Ingest jobs by terminal status",
	}, []string{"status"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_queue_depth",
		Help:      "Ingest jobs waiting for a worker",
	})
)

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
