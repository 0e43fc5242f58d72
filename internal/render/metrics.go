package render

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hardwarehavoc/fractile/internal/model"
)

var (
	tilesRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractile_tiles_rendered_total",
			Help: "Total number of tiles rendered, by execution mode.",
		},
		[]string{"mode"},
	)

	tileRenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fractile_tile_render_seconds",
			Help:    "Per-tile render duration in seconds, by execution mode.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(tilesRenderedTotal)
	prometheus.MustRegister(tileRenderDuration)

	// Pre-initialize label combinations so both modes appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	for _, mode := range []string{model.ModeSequential, model.ModeConcurrent} {
		tilesRenderedTotal.WithLabelValues(mode)
		tileRenderDuration.WithLabelValues(mode)
	}
}

// observeTile records one completed tile render. Called from worker
// goroutines; prometheus collectors are safe for concurrent use.
func observeTile(mode string, d time.Duration) {
	tilesRenderedTotal.WithLabelValues(mode).Inc()
	tileRenderDuration.WithLabelValues(mode).Observe(d.Seconds())
}
