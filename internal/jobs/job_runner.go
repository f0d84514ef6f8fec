package jobs

import (
	"github.com/belyaev-andrey/bookify/internal/config"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

// JobRunner coordinates the scheduled maintenance jobs.
type JobRunner struct {
	store  repository.Store
	config *config.Config
}

func NewJobRunner(store repository.Store, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:  store,
		config: cfg,
	}
}

// Config exposes the loaded configuration to the scheduler.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery so one bad
// run cannot take down the scheduler.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once, for manual execution.
func (jr *JobRunner) RunAll() {
	jr.ExpirePendingBorrowings()
	jr.PurgeProcessedOutbox()
}
