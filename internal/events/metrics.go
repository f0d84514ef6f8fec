package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookify",
		Subsystem: "events",
		Name:      "enqueued_total",
		Help:      "Domain events written to the outbox.",
	}, []string{"type"})

	eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookify",
		Subsystem: "events",
		Name:      "delivered_total",
		Help:      "Domain events delivered to all handlers and marked processed.",
	}, []string{"type"})

	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookify",
		Subsystem: "events",
		Name:      "delivery_failures_total",
		Help:      "Delivery attempts that failed and will be retried.",
	}, []string{"type"})
)

// CountEnqueued records an event written to the outbox. Called by the
// repository layer so both postgres and memory stores report it.
func CountEnqueued(eventType string) {
	eventsEnqueued.WithLabelValues(eventType).Inc()
}
