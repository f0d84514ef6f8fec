package jobs

import (
	"context"
	"time"

	"github.com/belyaev-andrey/bookify/internal/logger"
)

// outboxRetention is how long processed outbox rows are kept before
// purging. Long enough to debug a delivery problem after the fact.
const outboxRetention = 7 * 24 * time.Hour

// PurgeProcessedOutbox deletes outbox rows that were processed more
// than the retention window ago. Unprocessed rows are never touched.
func (jr *JobRunner) PurgeProcessedOutbox() {
	jr.runWithRecovery("PurgeProcessedOutbox", func() {
		ctx := context.Background()
		cutoff := time.Now().UTC().Add(-outboxRetention)

		deleted, err := jr.store.Outbox().DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to purge processed outbox rows", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("Purged processed outbox rows", "count", deleted, "cutoff", cutoff)
		}
	})
}
