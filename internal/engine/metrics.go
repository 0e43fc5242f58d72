package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hardwarehavoc/fractile/internal/model"
)

var runsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fractile_runs_total",
		Help: "Total number of render runs executed, by mode and outcome.",
	},
	[]string{"mode", "status"},
)

func init() {
	prometheus.MustRegister(runsTotal)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	for _, mode := range []string{model.ModeSequential, model.ModeConcurrent} {
		runsTotal.WithLabelValues(mode, model.StatusCompleted)
		runsTotal.WithLabelValues(mode, model.StatusFailed)
	}
}
