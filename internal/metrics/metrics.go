// Package metrics exposes Prometheus instrumentation for ingestion, media
// loading and location resolution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lookback_ingest_duration_seconds",
			Help:    "Duration of catalog ingestions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookback_ingest_runs_total",
			Help: "Total number of ingestions by outcome",
		},
		[]string{"outcome"}, // "published", "superseded", "failed"
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookback_catalog_memories",
			Help: "Number of memories in the published catalog",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookback_records_skipped_total",
			Help: "Metadata records skipped during matching",
		},
		[]string{"reason"}, // "read", "parse", "duplicate"
	)

	// Media
	MediaLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookback_media_loads_total",
			Help: "Media load attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "failed"
	)

	// Location cache
	LocationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookback_location_cache_hits_total",
			Help: "Coordinate label lookups served from the cache",
		},
	)

	LocationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookback_location_cache_misses_total",
			Help: "Coordinate label lookups that formatted a new label",
		},
	)

	// Persistence
	PersistOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookback_persist_operations_total",
			Help: "Persistence operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)
)

// Outcome maps an error to an "ok"/"failed" label.
func Outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
