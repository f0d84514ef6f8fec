package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type borrowingService struct {
	store  repository.Store
	policy EligibilityPolicy
	tracer trace.Tracer
	log    *slog.Logger
}

func NewBorrowingService(store repository.Store, policy EligibilityPolicy) BorrowingService {
	return &borrowingService{
		store:  store,
		policy: policy,
		tracer: otel.Tracer("bookify/borrowing"),
		log:    logger.WithService("borrowing"),
	}
}

func (s *borrowingService) RequestLoan(ctx context.Context, memberID, bookID uuid.UUID) (*domain.Borrowing, *Rejection, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.RequestLoan",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("book.id", bookID.String()),
		))
	defer span.End()

	var (
		borrowing *domain.Borrowing
		rejection *Rejection
	)
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		member, err := tx.Members().GetByID(ctx, memberID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load member: %w", err)
		}
		active, err := tx.Borrowings().ListActiveByMember(ctx, memberID)
		if err != nil {
			return fmt.Errorf("list active borrowings: %w", err)
		}
		if rej := s.policy.Evaluate(member, active, time.Now().UTC()); rej != nil {
			rejection = rej
			return nil
		}

		b := &domain.Borrowing{
			ID:              uuid.New(),
			MemberID:        memberID,
			RequestedBookID: bookID,
			Status:          domain.BorrowingStatusPending,
			BorrowDate:      time.Now().UTC(),
		}
		if err := tx.Borrowings().Create(ctx, b); err != nil {
			return fmt.Errorf("create borrowing: %w", err)
		}
		env, err := events.NewEnvelope(events.TypeBookBorrowRequested, events.BookBorrowRequestedEvent{
			BorrowingID: b.ID,
			BookID:      bookID,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Enqueue(ctx, env); err != nil {
			return fmt.Errorf("enqueue borrow request event: %w", err)
		}
		borrowing = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if rejection != nil {
		s.log.Info("loan request rejected", "member_id", memberID, "book_id", bookID, "reason", rejection.Reason)
		span.SetAttributes(attribute.String("rejection.reason", string(rejection.Reason)))
		return nil, rejection, nil
	}
	s.log.Info("loan request accepted", "borrowing_id", borrowing.ID, "member_id", memberID, "book_id", bookID)
	span.SetAttributes(attribute.String("borrowing.id", borrowing.ID.String()))
	return borrowing, nil, nil
}

func (s *borrowingService) ReturnLoan(ctx context.Context, bookID, memberID uuid.UUID) (*domain.Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.ReturnLoan",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("book.id", bookID.String()),
		))
	defer span.End()

	var returned *domain.Borrowing
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		active, err := tx.Borrowings().FindActiveByBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("find active borrowing: %w", err)
		}
		var match *domain.Borrowing
		for i := range active {
			if active[i].MemberID == memberID {
				match = &active[i]
				break
			}
		}
		if match == nil {
			return ErrNoActiveBorrowing
		}

		now := time.Now().UTC()
		match.ReturnDate = &now
		match.Status = domain.BorrowingStatusReturned
		if err := tx.Borrowings().Update(ctx, match); err != nil {
			return fmt.Errorf("update borrowing: %w", err)
		}
		env, err := events.NewEnvelope(events.TypeBookReturned, events.BookReturnedEvent{
			BookID:   bookID,
			MemberID: memberID,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Enqueue(ctx, env); err != nil {
			return fmt.Errorf("enqueue return event: %w", err)
		}
		returned = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("book returned", "borrowing_id", returned.ID, "member_id", memberID, "book_id", bookID)
	return returned, nil
}

func (s *borrowingService) GetBorrowing(ctx context.Context, id uuid.UUID) (*domain.Borrowing, error) {
	return s.store.Borrowings().GetByID(ctx, id)
}

func (s *borrowingService) FindAll(ctx context.Context) ([]domain.Borrowing, error) {
	return s.store.Borrowings().List(ctx)
}

func (s *borrowingService) ListBorrowings(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	return s.store.Borrowings().ListByMember(ctx, memberID)
}

func (s *borrowingService) ListActiveBorrowings(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	return s.store.Borrowings().ListActiveByMember(ctx, memberID)
}

// HandleAvailabilityChecked moves a PENDING borrowing to APPROVED or
// REJECTED. Redeliveries and events for unknown or already-resolved
// borrowings are absorbed without error so the outbox can mark them
// processed.
func (s *borrowingService) HandleAvailabilityChecked(ctx context.Context, e events.Envelope) error {
	ctx, span := s.tracer.Start(ctx, "borrowing.HandleAvailabilityChecked")
	defer span.End()

	var evt events.BookAvailabilityCheckedEvent
	if err := e.Decode(&evt); err != nil {
		s.log.Error("malformed availability event dropped", "event_id", e.ID, "error", err)
		return nil
	}
	span.SetAttributes(
		attribute.String("borrowing.id", evt.BorrowingID.String()),
		attribute.Bool("book.available", evt.Available),
	)

	return s.store.ExecTx(ctx, func(tx repository.Store) error {
		b, err := tx.Borrowings().GetByID(ctx, evt.BorrowingID)
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("availability event for unknown borrowing", "borrowing_id", evt.BorrowingID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load borrowing: %w", err)
		}
		if b.Status != domain.BorrowingStatusPending {
			s.log.Debug("availability event for resolved borrowing", "borrowing_id", b.ID, "status", b.Status)
			return nil
		}

		now := time.Now().UTC()
		b.ResolvedAt = &now
		if evt.Available {
			bookID := evt.BookID
			b.BookID = &bookID
			b.Status = domain.BorrowingStatusApproved
		} else {
			b.Status = domain.BorrowingStatusRejected
		}
		if err := tx.Borrowings().Update(ctx, b); err != nil {
			return fmt.Errorf("resolve borrowing: %w", err)
		}
		s.log.Info("borrowing resolved", "borrowing_id", b.ID, "status", b.Status)
		return nil
	})
}
