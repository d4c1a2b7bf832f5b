package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	instructionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ngsw_instructions_executed_total",
		Help: "Instructions executed while resolving a fetch dispatch, by kind.",
	}, []string{"kind"})

	dispatchResult = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ngsw_dispatch_result_total",
		Help: "Terminal outcome of a fetch dispatch.",
	}, []string{"result"})

	dispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ngsw_dispatch_duration_seconds",
		Help:    "Wall time to resolve one fetch dispatch, including recursive re-entries.",
		Buckets: prometheus.DefBuckets,
	})
)

// registerMetrics registers the engine's collectors with the default
// registry on first use. Tests that construct multiple Engines in one
// process never hit a duplicate-registration panic.
func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(instructionsExecuted, dispatchResult, dispatchLatency)
	})
}
