package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/belyaev-andrey/bookify/internal/events"
)

type outboxRepository struct {
	q DBTX
}

func (r *outboxRepository) Enqueue(ctx context.Context, e events.Envelope) error {
	query := `INSERT INTO event_outbox (event_type, payload, created_at) VALUES ($1, $2, $3)`
	if _, err := r.q.ExecContext(ctx, query, e.EventType, []byte(e.Payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("enqueue %s: %w", e.EventType, err)
	}
	events.CountEnqueued(e.EventType)
	return nil
}

func (r *outboxRepository) ListUnprocessed(ctx context.Context, limit int) ([]events.Envelope, error) {
	query := `SELECT id, event_type, payload, created_at FROM event_outbox
	          WHERE processed_at IS NULL ORDER BY id ASC LIMIT $1`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []events.Envelope
	for rows.Next() {
		var e events.Envelope
		if err := rows.Scan(&e.ID, &e.EventType, (*[]byte)(&e.Payload), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		batch = append(batch, e)
	}
	return batch, rows.Err()
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE event_outbox SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`, time.Now().UTC(), id)
	return err
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM event_outbox WHERE processed_at IS NOT NULL AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
