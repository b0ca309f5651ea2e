// Package metrics declares the Prometheus collectors of the server. They are
// registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngested counts measurement rows written.
	// Labels:
	//   - transport: "http", "ws", "mqtt"
	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacao_readings_ingested_total",
			Help: "Total number of measurement rows written by ingestion",
		},
		[]string{"transport"},
	)

	// IngestFailures counts rejected or failed submissions.
	// Labels:
	//   - transport: "http", "ws", "mqtt"
	//   - reason: error kind ("validation", "internal", ...) or "rate_limited", "decode"
	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacao_ingest_failures_total",
			Help: "Total number of reading submissions that were not stored",
		},
		[]string{"transport", "reason"},
	)

	// FermentationOps counts lifecycle and ledger operations by outcome.
	FermentationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacao_fermentation_operations_total",
			Help: "Total number of fermentation lifecycle and genotype ledger operations",
		},
		[]string{"operation", "outcome"},
	)

	SnapshotCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacao_snapshot_cache_hits_total",
		Help: "Latest-snapshot reads served from the cache",
	})

	SnapshotCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacao_snapshot_cache_misses_total",
		Help: "Latest-snapshot reads that fell through to the database",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacao_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)
)
