package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StatusQueries counts client status queries by observed outcome
	// (pending, approved, denied, malformed, transport_error).
	StatusQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payfriend_status_queries_total",
			Help: "Status queries issued by the one-touch poller",
		},
		[]string{"outcome"},
	)

	FallbackReveals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payfriend_fallback_reveals_total",
			Help: "Secondary channel reveals shown to the user",
		},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payfriend_submissions_total",
			Help: "Payment submissions received by the backend",
		},
		[]string{"result"},
	)

	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payfriend_approval_resolutions_total",
			Help: "Approval requests resolved by the backend",
		},
		[]string{"outcome", "channel"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payfriend_notifications_total",
			Help: "Notifications handed to the notifier",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(StatusQueries, FallbackReveals, Submissions, Resolutions, Notifications)
}
