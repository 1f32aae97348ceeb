package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Tile metrics
	TileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackmap",
		Subsystem: "tiles",
		Name:      "lookups_total",
		Help:      "Tile lookups by the source that served them",
	}, []string{"layer", "source"})

	TileFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trackmap",
		Subsystem: "tiles",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of remote tile fetches",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"layer"})

	TileFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackmap",
		Subsystem: "tiles",
		Name:      "fetch_errors_total",
		Help:      "Tiles that could not be fetched or decoded",
	}, []string{"layer"})

	StaleTiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackmap",
		Subsystem: "tiles",
		Name:      "stale_results_total",
		Help:      "Tile results dropped because their window was superseded",
	})

	CachedTiles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackmap",
		Subsystem: "tiles",
		Name:      "memory_cache_entries",
		Help:      "Decoded tiles held in memory",
	})

	// Elevation metrics
	ElevationBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackmap",
		Subsystem: "elevation",
		Name:      "batches_total",
		Help:      "Elevation correction batches by outcome",
	}, []string{"status"})

	ElevationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackmap",
		Subsystem: "elevation",
		Name:      "cache_hits_total",
		Help:      "Elevation lookups answered from the local cache",
	})
)

// Serve exposes the default registry on addr under /metrics.
// The returned server is already listening in the background.
func Serve(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
