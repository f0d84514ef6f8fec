package domain

import (
	"time"

	"github.com/google/uuid"
)

type BorrowingStatus string

const (
	BorrowingStatusPending  BorrowingStatus = "PENDING"
	BorrowingStatusApproved BorrowingStatus = "APPROVED"
	BorrowingStatusRejected BorrowingStatus = "REJECTED"
	BorrowingStatusReturned BorrowingStatus = "RETURNED"
)

// Borrowing is a book-loan request and its resolution state.
//
// RequestedBookID always holds the id the member asked for, even when no
// such book exists. BookID is set only once the catalog has actually
// reserved a copy, so BookID is non-nil exactly when the status is
// APPROVED or RETURNED.
type Borrowing struct {
	ID              uuid.UUID       `json:"id"`
	MemberID        uuid.UUID       `json:"member_id"`
	RequestedBookID uuid.UUID       `json:"requested_book_id"`
	BookID          *uuid.UUID      `json:"book_id,omitempty"`
	Status          BorrowingStatus `json:"status"`
	BorrowDate      time.Time       `json:"borrow_date"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ReturnDate      *time.Time      `json:"return_date,omitempty"`
}

// IsReturned reports whether the borrowed book has been returned.
func (b *Borrowing) IsReturned() bool {
	return b.ReturnDate != nil
}

// Active reports whether the borrowing holds a book right now: approved
// and not yet returned.
func (b *Borrowing) Active() bool {
	return b.Status == BorrowingStatusApproved && b.ReturnDate == nil
}
