// Package metrics exposes the bot's Prometheus collectors and the HTTP
// endpoint serving them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridebot"

var (
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "updates_total", Help: "Inbound Telegram updates by kind"},
		[]string{"kind"},
	)
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Update handler latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler", "status"},
	)
	TripsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "trips_created_total", Help: "Trips created after a successful quote",
	})
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dispatch_outcomes_total", Help: "Driver broadcast and accept/decline outcomes"},
		[]string{"outcome"},
	)
	OutboundFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "outbound_failures_total", Help: "Failed calls to Telegram and map providers"},
		[]string{"action", "kind"},
	)
)

// Dispatch outcome labels.
const (
	OutcomeBroadcast     = "broadcast"
	OutcomeDeliveryFail  = "delivery_fail"
	OutcomeAccepted      = "accepted"
	OutcomeAcceptLost    = "accept_lost"
	OutcomeDeclined      = "declined"
	OutcomeDeclineNoop   = "decline_noop"
	OutcomeConfirmRepeat = "confirm_repeat"
)

// ObserveHandler records one handler run.
func ObserveHandler(handler, status string, took time.Duration) {
	HandlerDuration.WithLabelValues(handler, status).Observe(took.Seconds())
}

// Outbound counts a failed outbound call.
func Outbound(action, kind string) {
	if kind == "" {
		kind = "other"
	}
	OutboundFailures.WithLabelValues(action, kind).Inc()
}

// Dispatch counts a dispatch outcome.
func Dispatch(outcome string) {
	DispatchOutcomes.WithLabelValues(outcome).Inc()
}
