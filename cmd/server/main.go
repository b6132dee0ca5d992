package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pbaptista/avalia/internal"
	"github.com/pbaptista/avalia/internal/handler"
	"github.com/pbaptista/avalia/internal/metrics"
	"github.com/pbaptista/avalia/internal/middleware"
	"github.com/pbaptista/avalia/internal/notify"
	"github.com/pbaptista/avalia/internal/pricing"
	pricingmock "github.com/pbaptista/avalia/internal/pricing/mock"
	pricingtable "github.com/pbaptista/avalia/internal/pricing/table"
	"github.com/pbaptista/avalia/internal/repository"
	"github.com/pbaptista/avalia/internal/service"
	"github.com/pbaptista/avalia/internal/storage"
	"github.com/pbaptista/avalia/internal/valuation"
	"github.com/pbaptista/avalia/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize photo storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		store, err = storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			Region:          cfg.S3Region,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize pricing provider
	var prices pricing.Provider
	switch cfg.PricingProvider {
	case "mock":
		prices = pricingmock.New()
	default:
		prices, err = pricingtable.New(cfg.DefaultCurrency, logger)
		if err != nil {
			return fmt.Errorf("pricing table initialization failed: %w", err)
		}
	}

	// Initialize valuation pipeline
	valuationService, err := valuation.New(prices, valuation.Config{
		SafetyMarginPct:            cfg.SafetyMarginPct,
		ProfitMarginPct:            cfg.ProfitMarginPct,
		MaxAdjustmentPct:           cfg.MaxAdjustmentPct,
		RequireSeniorApproval:      cfg.RequireSeniorApproval,
		SeniorApprovalThresholdPct: cfg.SeniorApprovalThresholdPct,
	}, logger)
	if err != nil {
		return fmt.Errorf("valuation initialization failed: %w", err)
	}

	// Initialize the appraisal service
	appraisalService := service.NewAppraisalService(
		db, repo, store, service.NewImagingProcessor(), valuationService, logger,
	)

	// Initialize the background worker for event delivery
	var notifier notify.Notifier
	if cfg.EventWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.EventWebhookURL, cfg.EventWebhookTimeout, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.PollInterval = cfg.WorkerPollInterval
	workerCfg.JobTimeout = cfg.WorkerJobTimeout

	jobWorker, err := worker.New(db, repo, workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	jobWorker.Register(worker.NewDeliverEventHandler(notifier, logger))

	if cfg.WorkerEnabled {
		jobWorker.Start(ctx)
		defer jobWorker.Stop()
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth when configured)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored photos
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// API and public verification routes
	handler.NewAppraisalHandler(appraisalService, logger).RegisterRoutes(mux)
	handler.NewVerifyHandler(appraisalService, logger).RegisterRoutes(mux)

	// Wrap with request logging and metrics
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	root := metrics.Middleware(loggingMw.Handler(mux))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
