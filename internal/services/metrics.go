package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// inboundOutcomes counts pipeline results by outcome (drafted, suppressed,
	// handed_over, no_response, command).
	inboundOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_pipeline_outcomes_total",
			Help: "Inbound pipeline results by outcome.",
		},
		[]string{"outcome"},
	)

	// deliveryAttempts counts delivery attempts by recorded event type.
	deliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Delivery attempts by audit event type.",
		},
		[]string{"event_type"},
	)

	// deliveryExhausted counts messages whose retries ran out.
	deliveryExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retries_exhausted_total",
			Help: "Outbound messages that reached the retry cap.",
		},
	)
)

func init() {
	prometheus.MustRegister(inboundOutcomes, deliveryAttempts, deliveryExhausted)
}
