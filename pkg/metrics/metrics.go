package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engagement pipeline metrics. promauto registers them on the default
// registry; both binaries expose it on /metrics.
var (
	TrackingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_tracking_events_total",
		Help: "Engagement events recorded, by campaign kind and action",
	}, []string{"kind", "action"})

	TrackingInvalidID = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_tracking_invalid_id_total",
		Help: "Tracking callbacks dropped for malformed message ids",
	})

	TrackingRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_tracking_rate_limited_total",
		Help: "Tracking callbacks degraded to read-only by the rate limiter",
	})

	DripSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_drip_sent_total",
		Help: "Sequence steps dispatched, by campaign kind",
	}, []string{"kind"})

	DripErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_drip_errors_total",
		Help: "Per-recipient dispatch failures, by campaign kind",
	}, []string{"kind"})

	DripRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engage_drip_run_duration_seconds",
		Help:    "Time spent in one scheduler run",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})
)
