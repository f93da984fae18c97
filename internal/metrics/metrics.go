// Package metrics holds the Prometheus collectors shared by the store, engine callers and API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsLoaded counts snapshot files decoded successfully (cache hits excluded).
	SnapshotsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pax_snapshots_loaded_total",
		Help: "Snapshot files decoded successfully.",
	})

	// SnapshotsSkipped counts snapshot files skipped as malformed or unreadable.
	SnapshotsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pax_snapshots_skipped_total",
		Help: "Snapshot files skipped because they failed to load.",
	})

	// EngineRunDuration records wall time of one engine computation per component.
	EngineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pax_engine_run_duration_seconds",
		Help:    "Duration of engine computations by component.",
		Buckets: prometheus.DefBuckets,
	}, []string{"component"})

	// CacheFallbacks counts responses served from the CSV cache instead of a live computation.
	CacheFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pax_cache_fallbacks_total",
		Help: "Results served from the flat cache because live computation returned nothing.",
	}, []string{"cache"})
)

// ObserveRun records the time since start for component.
// Use as: defer metrics.ObserveRun("churn", time.Now())
func ObserveRun(component string, start time.Time) {
	EngineRunDuration.WithLabelValues(component).Observe(time.Since(start).Seconds())
}
