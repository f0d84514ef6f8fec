package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
)

// ErrNotFound is returned by Get* methods when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateReservation is returned by CreateReservation when a
// reservation for the borrowing id already exists. Callers treat it as
// "someone else already did this work", not as a failure.
var ErrDuplicateReservation = errors.New("reservation already exists")

type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Book, error)
	SearchByName(ctx context.Context, name string) ([]domain.Book, error)

	// Reserve atomically flips available to false and reports whether it
	// succeeded. Returns false both for an unavailable and for an
	// unknown book; it never errors on a missing row.
	Reserve(ctx context.Context, id uuid.UUID) (bool, error)
	// Release flips available back to true. A no-op for unknown books
	// and books that are already available.
	Release(ctx context.Context, id uuid.UUID) error

	GetReservation(ctx context.Context, borrowingID uuid.UUID) (*domain.BookReservation, error)
	CreateReservation(ctx context.Context, res *domain.BookReservation) error
}

type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	Update(ctx context.Context, member *domain.Member) error
	List(ctx context.Context) ([]domain.Member, error)
	ListEnabled(ctx context.Context) ([]domain.Member, error)
	SearchByName(ctx context.Context, name string) ([]domain.Member, error)
	SearchByEmail(ctx context.Context, email string) ([]domain.Member, error)
}

type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) error
	List(ctx context.Context, sortBy string) ([]domain.Employee, error)
}

type BorrowingRepository interface {
	Create(ctx context.Context, b *domain.Borrowing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrowing, error)
	Update(ctx context.Context, b *domain.Borrowing) error
	List(ctx context.Context) ([]domain.Borrowing, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error)
	// ListActiveByMember returns APPROVED borrowings with no return date.
	ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error)
	// FindActiveByBook returns the APPROVED, un-returned borrowings that
	// resolved to the given book (at most one when invariants hold).
	FindActiveByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Borrowing, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Borrowing, error)
}

type OutboxRepository interface {
	// Enqueue persists the envelope as part of the surrounding
	// transaction when called through ExecTx, which is what makes the
	// commit-then-publish contract hold.
	Enqueue(ctx context.Context, e events.Envelope) error
	ListUnprocessed(ctx context.Context, limit int) ([]events.Envelope, error)
	MarkProcessed(ctx context.Context, id int64) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles the repositories with a transaction boundary. ExecTx
// runs fn against a Store whose repositories share one transaction;
// fn returning an error rolls everything back, including enqueued
// events.
type Store interface {
	Books() BookRepository
	Members() MemberRepository
	Employees() EmployeeRepository
	Borrowings() BorrowingRepository
	Outbox() OutboxRepository
	ExecTx(ctx context.Context, fn func(Store) error) error
}
