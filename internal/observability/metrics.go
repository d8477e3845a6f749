// Package observability provides the Prometheus metric set and the
// liveness surface for the towerchat server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the counters and gauges the hub reports.
type Metrics struct {
	// ActiveConnections tracks live WebSocket connections.
	// Labels: state (pending|authenticated)
	ActiveConnections *prometheus.GaugeVec

	// MessagesRouted counts messages accepted and fanned out.
	// Labels: kind (text|file|image|alert|handover)
	MessagesRouted *prometheus.CounterVec

	// EventsDropped counts outbound frames dropped because a connection's
	// send buffer was full. Labels: event
	EventsDropped *prometheus.CounterVec

	// HandlerErrors counts failed client operations by wire code.
	// Labels: code (authentication_failed|unauthenticated|access_denied|not_a_member|persistence_error|internal)
	HandlerErrors *prometheus.CounterVec

	// FanoutSize observes the number of recipients per broadcast.
	FanoutSize prometheus.Histogram
}

// NewMetrics creates and registers the metric set with reg. Pass nil to use
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "towerchat_active_connections",
				Help: "Current number of live WebSocket connections by state",
			},
			[]string{"state"},
		),
		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "towerchat_messages_routed_total",
				Help: "Messages persisted and broadcast, by kind",
			},
			[]string{"kind"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "towerchat_events_dropped_total",
				Help: "Outbound events dropped due to a full send buffer, by event",
			},
			[]string{"event"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "towerchat_handler_errors_total",
				Help: "Client operation failures by wire error code",
			},
			[]string{"code"},
		),
		FanoutSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "towerchat_fanout_recipients",
				Help:    "Recipients per channel broadcast",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}
}
