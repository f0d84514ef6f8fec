package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type names as stored in the outbox and used for subscriptions.
const (
	TypeBookBorrowRequested     = "BookBorrowRequested"
	TypeBookAvailabilityChecked = "BookAvailabilityChecked"
	TypeBookReturned            = "BookReturned"
)

// BookBorrowRequestedEvent is published when a pending borrowing has been
// created and the catalog should check availability.
type BookBorrowRequestedEvent struct {
	BorrowingID uuid.UUID `json:"borrowing_id"`
	BookID      uuid.UUID `json:"book_id"`
}

// BookAvailabilityCheckedEvent is published by the catalog with the
// outcome of a check-and-reserve. BorrowingID is the correlation id.
type BookAvailabilityCheckedEvent struct {
	BorrowingID uuid.UUID `json:"borrowing_id"`
	BookID      uuid.UUID `json:"book_id"`
	Available   bool      `json:"available"`
}

// BookReturnedEvent is published when a member has returned a book.
type BookReturnedEvent struct {
	BookID   uuid.UUID `json:"book_id"`
	MemberID uuid.UUID `json:"member_id"`
}

// Envelope is the persisted form of a domain event: one outbox row.
// An event counts as delivered only once ProcessedAt is set; until then
// the relay keeps redelivering it, so handlers must be idempotent.
type Envelope struct {
	ID          int64           `json:"id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// NewEnvelope wraps a typed event payload for enqueueing.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{EventType: eventType, Payload: data}, nil
}

// Decode unmarshals the envelope payload into the given event struct.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
