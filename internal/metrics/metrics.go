// Package metrics registers the Prometheus collectors for plan translation,
// overlay resolution and backend execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "image_pipeline"

// Planning metrics
var (
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Total number of rendering plans translated",
		},
		[]string{"status"},
	)

	OperationsElidedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_elided_total",
			Help:      "Total number of no-op operations left out of plans",
		},
		[]string{"kind"},
	)

	PlanWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_warnings_total",
			Help:      "Total number of warnings recorded while translating plans",
		},
	)
)

// Overlay metrics
var (
	OverlayResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_resolutions_total",
			Help:      "Total number of overlay resolutions",
		},
		[]string{"result"}, // "hit", "fetched" or "failed"
	)

	OverlayFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overlay_fetch_duration_seconds",
			Help:      "Overlay fetch time distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"scheme"},
	)
)

// Backend metrics
var (
	BackendExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_executions_total",
			Help:      "Total number of backend executions",
		},
		[]string{"backend", "status"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_duration_seconds",
			Help:      "Backend execution time distribution",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)
)
