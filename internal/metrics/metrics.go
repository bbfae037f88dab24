// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal tracks inbound webhook events by kind.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "james_events_total",
			Help: "Total inbound Messenger events",
		},
		[]string{"kind"},
	)

	// RecommendationsTotal tracks recommendation attempts by outcome.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "james_recommendations_total",
			Help: "Total recommendation attempts",
		},
		[]string{"outcome"},
	)

	// CollaboratorErrorsTotal tracks failures of external services.
	CollaboratorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "james_collaborator_errors_total",
			Help: "Total external service failures",
		},
		[]string{"service"},
	)

	// ActiveSessions tracks currently live conversation sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "james_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)

	// TurnDuration tracks how long one conversation turn takes end to end.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "james_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// RecordEvent records one inbound event of the given kind.
func RecordEvent(kind string) {
	EventsTotal.WithLabelValues(kind).Inc()
}

// RecordRecommendation records a recommendation attempt outcome.
func RecordRecommendation(outcome string) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCollaboratorError records a failure of an external service.
func RecordCollaboratorError(service string) {
	CollaboratorErrorsTotal.WithLabelValues(service).Inc()
}
