package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_admissions_total", Help: "Total admission decisions by outcome"},
		[]string{"outcome"},
	)
	AdvisoryRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_advisory_requests_total", Help: "Total advisory consultations by result"},
		[]string{"result"},
	)
	AdvisoryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_advisory_duration_seconds",
			Help:    "Latency of advisory consultations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)
	Reviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_reviews_total", Help: "Total review decisions by resulting status"},
		[]string{"status"},
	)
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_alerts_total", Help: "Total gaming alerts raised by type"},
		[]string{"type"},
	)
)

// Admission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "error"
)

// Advisory results.
const (
	AdvisoryOK          = "ok"
	AdvisoryUnavailable = "unavailable"
)

func Register() {
	prometheus.MustRegister(Admissions, AdvisoryRequests, AdvisoryDuration, Reviews, Alerts)
}
