package events

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler consumes a single event. Handlers run in their own unit of
// work, may be invoked more than once for the same envelope, and must
// return a non-nil error to request redelivery.
type Handler func(ctx context.Context, e Envelope) error

// Bus routes envelopes to subscribed handlers by event type. It carries
// no delivery state of its own; durability and retry live in the Relay
// and the outbox table.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	tracer   trace.Tracer
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		tracer:   otel.Tracer("bookify/events"),
	}
}

// Subscribe registers a handler for an event type. Registration is
// expected at startup, before the relay runs.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Dispatch invokes every handler subscribed to the envelope's type,
// stopping at the first error so the envelope stays unprocessed and is
// redelivered later.
func (b *Bus) Dispatch(ctx context.Context, e Envelope) error {
	ctx, span := b.tracer.Start(ctx, "events.dispatch",
		trace.WithAttributes(
			attribute.String("event.type", e.EventType),
			attribute.Int64("event.id", e.ID),
		),
	)
	defer span.End()

	b.mu.RLock()
	handlers := b.handlers[e.EventType]
	b.mu.RUnlock()

	for i, h := range handlers {
		if err := h(ctx, e); err != nil {
			span.SetAttributes(attribute.Int("handler.failed_index", i))
			return fmt.Errorf("handle %s: %w", e.EventType, err)
		}
	}

	span.SetAttributes(attribute.Int("handler.count", len(handlers)))
	return nil
}
