package service

import (
	"time"

	"github.com/belyaev-andrey/bookify/internal/domain"
)

type RejectionReason string

const (
	ReasonMemberNotFound   RejectionReason = "MEMBER_NOT_FOUND"
	ReasonMemberDisabled   RejectionReason = "MEMBER_DISABLED"
	ReasonLoanLimitReached RejectionReason = "LOAN_LIMIT_REACHED"
	ReasonOverdueLoan      RejectionReason = "OVERDUE_LOAN"
)

// EligibilityPolicy decides whether a member may borrow another book.
// Pure: the caller supplies the member and their active loans, read
// inside the same transaction that will create the borrowing.
type EligibilityPolicy struct {
	MaxActiveLoans int
	OverdueDays    int
}

// Evaluate returns nil when the member is eligible, otherwise the
// rejection for the first rule that fails. Rules run in a fixed order:
// existence, enabled flag, loan limit, overdue loans.
func (p EligibilityPolicy) Evaluate(member *domain.Member, activeLoans []domain.Borrowing, now time.Time) *Rejection {
	if member == nil {
		return &Rejection{Reason: ReasonMemberNotFound}
	}
	if !member.Enabled {
		return &Rejection{Reason: ReasonMemberDisabled}
	}
	if len(activeLoans) >= p.MaxActiveLoans {
		return &Rejection{Reason: ReasonLoanLimitReached}
	}
	cutoff := now.Add(-time.Duration(p.OverdueDays) * 24 * time.Hour)
	for _, loan := range activeLoans {
		if loan.BorrowDate.Before(cutoff) {
			return &Rejection{Reason: ReasonOverdueLoan}
		}
	}
	return nil
}
