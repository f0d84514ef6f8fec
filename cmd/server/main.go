package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "github.com/belyaev-andrey/bookify/internal/api/http"
	"github.com/belyaev-andrey/bookify/internal/config"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository/postgres"
	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
	"github.com/belyaev-andrey/bookify/internal/storage"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Bookify backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
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

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Initialize cover storage
	covers, err := storage.NewLocalCoverStorage(cfg.Storage.CoversDir)
	if err != nil {
		logger.Error("Failed to initialize cover storage", "error", err)
		log.Fatalf("Failed to initialize cover storage: %v", err)
	}

	// Initialize Services
	bookSvc := service.NewBookService(store)
	memberSvc := service.NewMemberService(store)
	employeeSvc := service.NewEmployeeService(store)
	borrowingSvc := service.NewBorrowingService(store, service.EligibilityPolicy{
		MaxActiveLoans: cfg.Borrowing.MaxActiveLoans,
		OverdueDays:    cfg.Borrowing.OverdueDays,
	})

	// Wire the event bus and outbox relay
	bus := events.NewBus()
	bus.Subscribe(events.TypeBookBorrowRequested, bookSvc.HandleBorrowRequested)
	bus.Subscribe(events.TypeBookAvailabilityChecked, borrowingSvc.HandleAvailabilityChecked)
	bus.Subscribe(events.TypeBookReturned, bookSvc.HandleBookReturned)

	relay := events.NewRelay(store.Outbox(), bus,
		time.Duration(cfg.Events.RelayIntervalMillis)*time.Millisecond,
		cfg.Events.RelayBatchSize,
	)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(relayCtx)
	}()

	// Initialize HTTP API
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:       httpapi.NewAuthHandler(memberSvc, tokenManager, cfg.JWT.LibrarianEmails),
		Books:      httpapi.NewBookHandler(bookSvc, covers),
		Members:    httpapi.NewMemberHandler(memberSvc),
		Borrowings: httpapi.NewBorrowingHandler(borrowingSvc),
		Employees:  httpapi.NewEmployeeHandler(employeeSvc),
		Tokens:     tokenManager,
		DB:         db,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the relay after the HTTP server so in-flight requests can
	// still enqueue, then give it one final tick to drain.
	stopRelay()
	<-relayDone
	if _, err := relay.Tick(context.Background()); err != nil {
		logger.Warn("Final outbox tick failed", "error", err)
	}
	logger.Info("Shutdown complete")
}
