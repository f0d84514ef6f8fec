package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
)

// ErrNoActiveBorrowing is the negative outcome of ReturnLoan: the book
// is not currently borrowed by that member. A business result, not a
// fault.
var ErrNoActiveBorrowing = errors.New("no active borrowing for this book and member")

// Rejection is the negative outcome of a loan request. Carried as a
// value so callers can distinguish "declined" from "failed".
type Rejection struct {
	Reason RejectionReason `json:"reason"`
}

type BookService interface {
	AddBook(ctx context.Context, name, isbn string) (*domain.Book, error)
	RemoveBook(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	FindAll(ctx context.Context) ([]domain.Book, error)
	SearchBooksByName(ctx context.Context, name string) ([]domain.Book, error)

	// CheckAndReserve performs the atomic availability check for a
	// borrowing request and emits BookAvailabilityChecked with the
	// outcome. Idempotent per borrowing id.
	CheckAndReserve(ctx context.Context, bookID, borrowingID uuid.UUID) error

	// Event handlers wired to the bus at startup.
	HandleBorrowRequested(ctx context.Context, e events.Envelope) error
	HandleBookReturned(ctx context.Context, e events.Envelope) error
}

type MemberService interface {
	AddMember(ctx context.Context, name, email, password string) (*domain.Member, error)
	DisableMember(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	FindAll(ctx context.Context) ([]domain.Member, error)
	FindAllActive(ctx context.Context) ([]domain.Member, error)
	SearchMembersByName(ctx context.Context, name string) ([]domain.Member, error)
	SearchMembersByEmail(ctx context.Context, email string) ([]domain.Member, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Member, error)
}

type BorrowingService interface {
	// RequestLoan validates eligibility and creates a PENDING borrowing.
	// Exactly one of the three results is meaningful: a borrowing on
	// acceptance, a rejection when the member is ineligible (no record
	// is created), or an error on infrastructure failure.
	RequestLoan(ctx context.Context, memberID, bookID uuid.UUID) (*domain.Borrowing, *Rejection, error)

	// ReturnLoan closes the member's active borrowing of the book and
	// emits BookReturned. Returns ErrNoActiveBorrowing when there is
	// nothing to return.
	ReturnLoan(ctx context.Context, bookID, memberID uuid.UUID) (*domain.Borrowing, error)

	GetBorrowing(ctx context.Context, id uuid.UUID) (*domain.Borrowing, error)
	FindAll(ctx context.Context) ([]domain.Borrowing, error)
	ListBorrowings(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error)
	ListActiveBorrowings(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error)

	// HandleAvailabilityChecked resolves a PENDING borrowing. Wired to
	// the bus at startup; idempotent under redelivery.
	HandleAvailabilityChecked(ctx context.Context, e events.Envelope) error
}

type EmployeeService interface {
	FindAll(ctx context.Context, sortBy string) ([]domain.Employee, error)
}
