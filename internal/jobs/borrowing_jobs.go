package jobs

import (
	"context"
	"time"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

// ExpirePendingBorrowings rejects borrowings that have sat in PENDING
// past the configured expiry window. A stuck PENDING record means the
// availability event was never applied; rejecting it lets the member
// try again.
func (jr *JobRunner) ExpirePendingBorrowings() {
	jr.runWithRecovery("ExpirePendingBorrowings", func() {
		ctx := context.Background()
		cutoff := time.Now().UTC().Add(-time.Duration(jr.config.Borrowing.PendingExpiryHours) * time.Hour)

		count := 0
		err := jr.store.ExecTx(ctx, func(tx repository.Store) error {
			stale, err := tx.Borrowings().ListPendingOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			for i := range stale {
				b := &stale[i]
				now := time.Now().UTC()
				b.Status = domain.BorrowingStatusRejected
				b.ResolvedAt = &now
				if err := tx.Borrowings().Update(ctx, b); err != nil {
					return err
				}
				count++
			}
			return nil
		})
		if err != nil {
			logger.Error("Failed to expire pending borrowings", "error", err)
			return
		}
		if count > 0 {
			logger.Info("Expired stale pending borrowings", "count", count, "cutoff", cutoff)
		}
	})
}
