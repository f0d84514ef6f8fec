package events

import (
	"context"
	"fmt"
	"time"

	"github.com/belyaev-andrey/bookify/internal/logger"
)

// OutboxSource is the slice of the outbox the relay needs. The
// repository layer provides the implementation.
type OutboxSource interface {
	ListUnprocessed(ctx context.Context, limit int) ([]Envelope, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// Relay drains the outbox and hands envelopes to the bus. An envelope
// is marked processed only after every subscribed handler succeeded, so
// a crash mid-delivery means the next tick delivers it again:
// at-least-once, never silently dropped.
type Relay struct {
	outbox   OutboxSource
	bus      *Bus
	interval time.Duration
	batch    int
}

func NewRelay(outbox OutboxSource, bus *Bus, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if batch <= 0 {
		batch = 50
	}
	return &Relay{outbox: outbox, bus: bus, interval: interval, batch: batch}
}

// Run polls the outbox until the context is canceled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Info("Outbox relay started", "interval", r.interval.String(), "batch", r.batch)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				logger.Error("Outbox relay tick failed", "error", err)
			}
		}
	}
}

// Tick delivers one batch of unprocessed envelopes in enqueue order and
// returns how many were marked processed. A failing envelope is skipped
// for this tick and retried on the next; later envelopes of other
// correlation chains still get through.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	batch, err := r.outbox.ListUnprocessed(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed events: %w", err)
	}

	processed := 0
	for _, e := range batch {
		if err := r.bus.Dispatch(ctx, e); err != nil {
			deliveryFailures.WithLabelValues(e.EventType).Inc()
			logger.Warn("Event delivery failed, will retry", "event_type", e.EventType, "event_id", e.ID, "error", err)
			continue
		}
		if err := r.outbox.MarkProcessed(ctx, e.ID); err != nil {
			// The handlers ran; redelivery after this error is the
			// at-least-once contract doing its job.
			logger.Warn("Failed to mark event processed", "event_id", e.ID, "error", err)
			continue
		}
		eventsDelivered.WithLabelValues(e.EventType).Inc()
		processed++
	}
	return processed, nil
}

// Drain ticks until the outbox is empty, no forward progress is made,
// or the context is canceled. Intended for tests and for the cronjob
// runner's run-once mode.
func (r *Relay) Drain(ctx context.Context) error {
	for {
		batch, err := r.outbox.ListUnprocessed(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		processed, err := r.Tick(ctx)
		if err != nil {
			return err
		}
		if processed == 0 {
			return fmt.Errorf("outbox drain stalled with %d undeliverable events", len(batch))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
