package metrics

import "time"

// PlanTranslated records a successful translation and the operations it
// left out.
func PlanTranslated(elided []string, warnings int) {
	PlansTotal.WithLabelValues("ok").Inc()
	for _, kind := range elided {
		OperationsElidedTotal.WithLabelValues(kind).Inc()
	}
	if warnings > 0 {
		PlanWarningsTotal.Add(float64(warnings))
	}
}

// PlanFailed records a translation that returned an error.
func PlanFailed() {
	PlansTotal.WithLabelValues("failed").Inc()
}

// OverlayHit records a resolution served from the cache
func OverlayHit() {
	OverlayResolutionsTotal.WithLabelValues("hit").Inc()
}

// OverlayFetched records a resolution that fetched the asset
func OverlayFetched(scheme string, duration time.Duration) {
	OverlayResolutionsTotal.WithLabelValues("fetched").Inc()
	OverlayFetchDuration.WithLabelValues(scheme).Observe(duration.Seconds())
}

// OverlayFailed records a failed resolution
func OverlayFailed() {
	OverlayResolutionsTotal.WithLabelValues("failed").Inc()
}

// BackendCompleted records a successful backend execution
func BackendCompleted(backend string, duration time.Duration) {
	BackendExecutionsTotal.WithLabelValues(backend, "completed").Inc()
	BackendDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// BackendFailed records a failed backend execution
func BackendFailed(backend string) {
	BackendExecutionsTotal.WithLabelValues(backend, "failed").Inc()
}
