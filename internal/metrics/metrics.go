// Package metrics provides Prometheus metrics for the bridge session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Labels stay low-cardinality: no player ids, no free text.

var (
	// FlowsStarted counts calendar flows entered from idle.
	FlowsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bridge_calendar_flows_started_total",
		Help: "Total number of calendar flows started.",
	})

	// FlowsCompleted counts flows whose event was handed off.
	FlowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bridge_calendar_flows_completed_total",
		Help: "Total number of calendar flows completed and handed off.",
	})

	// FlowsCancelled counts flows discarded by cancel or a declined confirmation.
	FlowsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bridge_calendar_flows_cancelled_total",
		Help: "Total number of calendar flows cancelled.",
	})

	// AnswersRejected counts answers that failed validation, by state.
	AnswersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bridge_calendar_answers_rejected_total",
		Help: "Total number of rejected dialogue answers, by state.",
	}, []string{"state"})

	// HandoffFailures counts confirmed events that could not be delivered.
	HandoffFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bridge_calendar_handoff_failures_total",
		Help: "Total number of failed calendar event hand-offs.",
	})

	// InboundMessages counts decoded inbound messages by kind.
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bridge_inbound_messages_total",
		Help: "Total number of inbound backend messages, by kind.",
	}, []string{"kind"})

	// InboundDecodeErrors counts frames that could not be decoded.
	InboundDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bridge_inbound_decode_errors_total",
		Help: "Total number of undecodable inbound frames.",
	})

	// OutboundSent counts requests written to the transport, by type.
	OutboundSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bridge_outbound_sent_total",
		Help: "Total number of outbound requests sent, by type.",
	}, []string{"type"})

	// OutboundDropped counts requests dropped because the session was offline.
	OutboundDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bridge_outbound_dropped_total",
		Help: "Total number of outbound requests dropped, by type.",
	}, []string{"type"})

	// DialAttempts counts websocket connection attempts, by result.
	DialAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bridge_transport_dial_attempts_total",
		Help: "Total number of backend dial attempts, by result.",
	}, []string{"result"})

	// Connected is 1 while the backend connection is up.
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_bridge_connected",
		Help: "Whether the backend connection is currently up (1) or not (0).",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
