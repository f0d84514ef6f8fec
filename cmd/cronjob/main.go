package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/belyaev-andrey/bookify/internal/config"
	"github.com/belyaev-andrey/bookify/internal/jobs"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository/postgres"
	"github.com/belyaev-andrey/bookify/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit ('expire-pending', 'purge-outbox', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Bookify cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories and jobs
	store := postgres.NewStore(db)
	jobRunner := jobs.NewJobRunner(store, cfg)

	// Run a single job and exit if requested
	if *runOnce != "" {
		runSingleJob(jobRunner, *runOnce)
		return
	}

	// Otherwise run the scheduler until a shutdown signal arrives
	sched := scheduler.NewScheduler(jobRunner)
	sched.Start()
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())
}

func runSingleJob(jr *jobs.JobRunner, name string) {
	switch name {
	case "expire-pending":
		jr.ExpirePendingBorrowings()
	case "purge-outbox":
		jr.PurgeProcessedOutbox()
	case "all":
		jr.RunAll()
	default:
		logger.Error("Unknown job name", "job", name)
		os.Exit(1)
	}
}
