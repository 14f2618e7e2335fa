package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_created_total",
			Help: "Total number of sessions created, by store backend",
		},
		[]string{"store"},
	)

	SessionTouches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_touches_total",
			Help: "Total number of last-activity updates, by store backend",
		},
		[]string{"store"},
	)

	SessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_destroyed_total",
			Help: "Total number of sessions destroyed, by reason",
		},
		[]string{"reason"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of sessions believed live by this instance",
		},
	)

	WarningResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_warning_responses_total",
			Help: "Responses that carried the session warning header",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "session_http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route"},
	)
)

// Destroy reasons used as label values.
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
	ReasonSwept   = "swept"
)
