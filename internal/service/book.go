package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type bookService struct {
	store  repository.Store
	tracer trace.Tracer
	log    *slog.Logger
}

func NewBookService(store repository.Store) BookService {
	return &bookService{
		store:  store,
		tracer: otel.Tracer("bookify/book"),
		log:    logger.WithService("book"),
	}
}

func (s *bookService) AddBook(ctx context.Context, name, isbn string) (*domain.Book, error) {
	book := &domain.Book{
		ID:        uuid.New(),
		Name:      name,
		ISBN:      isbn,
		Available: true,
	}
	if err := s.store.Books().Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	s.log.Info("book added", "book_id", book.ID, "name", book.Name)
	return book, nil
}

func (s *bookService) RemoveBook(ctx context.Context, id uuid.UUID) error {
	return s.store.Books().Delete(ctx, id)
}

func (s *bookService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	return s.store.Books().GetByID(ctx, id)
}

func (s *bookService) FindAll(ctx context.Context) ([]domain.Book, error) {
	return s.store.Books().List(ctx)
}

func (s *bookService) SearchBooksByName(ctx context.Context, name string) ([]domain.Book, error) {
	return s.store.Books().SearchByName(ctx, name)
}

// CheckAndReserve decides availability for one borrowing request in a
// single transaction: look up a prior reservation for the borrowing id
// (a redelivery re-emits the recorded outcome), otherwise attempt the
// atomic flip, record the outcome, and enqueue BookAvailabilityChecked.
// An unknown book yields available=false, never an error.
func (s *bookService) CheckAndReserve(ctx context.Context, bookID, borrowingID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "book.CheckAndReserve",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("borrowing.id", borrowingID.String()),
		))
	defer span.End()

	return s.store.ExecTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Books().GetReservation(ctx, borrowingID)
		if err == nil {
			s.log.Debug("reservation already recorded, re-emitting outcome",
				"borrowing_id", borrowingID, "available", existing.Available)
			return enqueueAvailabilityChecked(ctx, tx, existing.BookID, borrowingID, existing.Available)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("look up reservation: %w", err)
		}

		available, err := tx.Books().Reserve(ctx, bookID)
		if err != nil {
			return fmt.Errorf("reserve book: %w", err)
		}
		res := &domain.BookReservation{
			BorrowingID: borrowingID,
			BookID:      bookID,
			Available:   available,
		}
		if err := tx.Books().CreateReservation(ctx, res); err != nil {
			// A concurrent delivery won the insert; roll back our flip
			// and let the retry take the recorded-outcome path.
			return fmt.Errorf("record reservation: %w", err)
		}
		span.SetAttributes(attribute.Bool("book.available", available))
		s.log.Info("availability checked", "book_id", bookID, "borrowing_id", borrowingID, "available", available)
		return enqueueAvailabilityChecked(ctx, tx, bookID, borrowingID, available)
	})
}

func enqueueAvailabilityChecked(ctx context.Context, tx repository.Store, bookID, borrowingID uuid.UUID, available bool) error {
	env, err := events.NewEnvelope(events.TypeBookAvailabilityChecked, events.BookAvailabilityCheckedEvent{
		BorrowingID: borrowingID,
		BookID:      bookID,
		Available:   available,
	})
	if err != nil {
		return err
	}
	if err := tx.Outbox().Enqueue(ctx, env); err != nil {
		return fmt.Errorf("enqueue availability event: %w", err)
	}
	return nil
}

func (s *bookService) HandleBorrowRequested(ctx context.Context, e events.Envelope) error {
	var evt events.BookBorrowRequestedEvent
	if err := e.Decode(&evt); err != nil {
		s.log.Error("malformed borrow request event dropped", "event_id", e.ID, "error", err)
		return nil
	}
	return s.CheckAndReserve(ctx, evt.BookID, evt.BorrowingID)
}

// HandleBookReturned flips the book back to available. Releasing an
// already-available or unknown book is a no-op, so redeliveries are
// harmless.
func (s *bookService) HandleBookReturned(ctx context.Context, e events.Envelope) error {
	ctx, span := s.tracer.Start(ctx, "book.HandleBookReturned")
	defer span.End()

	var evt events.BookReturnedEvent
	if err := e.Decode(&evt); err != nil {
		s.log.Error("malformed return event dropped", "event_id", e.ID, "error", err)
		return nil
	}
	span.SetAttributes(attribute.String("book.id", evt.BookID.String()))
	return s.store.ExecTx(ctx, func(tx repository.Store) error {
		return tx.Books().Release(ctx, evt.BookID)
	})
}
