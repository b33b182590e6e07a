// Package metrics exposes Prometheus metrics for the publish dialog service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the turn and upload counters.
const (
	OutcomeOK             = "success"
	OutcomeFailed         = "failure"
	OutcomeTransportError = "transport_error"
)

var (
	// TurnsTotal counts negotiation turns by response status
	// (need_more_info, ready_to_create, created, creation_failed) or
	// transport_error.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publishd_negotiation_turns_total",
		Help: "Negotiation turns sent, by outcome",
	}, []string{"outcome"})

	// TurnDuration observes negotiation turn round-trip time.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "publishd_negotiation_turn_duration_seconds",
		Help:    "Round-trip time of negotiation turns",
		Buckets: prometheus.DefBuckets,
	})

	// UploadsTotal counts per-file upload outcomes.
	// outcome=success|failure|transport_error
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publishd_image_uploads_total",
		Help: "Per-file image upload outcomes",
	}, []string{"outcome"})

	// ActiveSessions tracks the number of live publish dialog sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "publishd_active_sessions",
		Help: "Number of live publish dialog sessions",
	})

	// ListingsCreated counts dialogs that reached the created state.
	ListingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publishd_listings_created_total",
		Help: "Publish dialogs that ended in a created listing",
	})
)
