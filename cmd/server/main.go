// Package main is the entry point for the metron price-panel metrics service.
// The server ingests daily OHLCV price panels, derives per-symbol return and
// volatility metrics, aggregates monthly and yearly bars, and maintains
// feature and symbol correlation matrices over the whole panel.
//
// The application follows clean architecture principles:
// - Computation packages are pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/metron/internal/config"
	"github.com/aristath/metron/internal/di"
	"github.com/aristath/metron/internal/modules/pipeline"
	"github.com/aristath/metron/internal/server"
	"github.com/aristath/metron/pkg/logger"
)

// main is the application entry point. It orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env file supported)
// 2. Initializes the structured logger
// 3. Wires all dependencies via DI container (databases, repositories, services, jobs)
// 4. Starts the HTTP server for API endpoints
// 5. Starts the cron scheduler for background jobs
// 6. Kicks off a catch-up pipeline run when stored results are stale
// 7. Waits for shutdown signal and performs graceful shutdown
//
// The application uses a 3-database architecture:
// - panel.db: Imported price panel (the only data that cannot be recomputed)
// - metrics.db: Derived metrics (returns, bars, rolling stats, correlations, runs)
// - cache.db: Ephemeral calculation cache
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		// This ensures we can log the configuration error even if config loading fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	// Logger uses structured logging (zerolog) with configurable log levels
	// Pretty mode enables human-readable output for development
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting metron")

	// Wire all dependencies using DI container
	// This initializes databases, repositories, services and scheduler jobs:
	// - Databases are initialized first (3-database architecture)
	// - Repositories are created with database connections
	// - Services are created with repository dependencies
	// - Background jobs are registered on the cron scheduler
	// - All dependencies are injected via constructor injection
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Cleanup databases on exit
	// All 3 databases must be properly closed to ensure WAL checkpoints are
	// written and database integrity is maintained.
	defer container.CloseDatabases()

	// Initialize HTTP server
	// Pass container to server so the module routers can use all services.
	// The HTTP server provides REST API endpoints for:
	// - Panel management (import prices, list symbols, read and delete series)
	// - Derived metrics (daily returns, bars, rolling stats, summaries, indicators)
	// - Correlation matrices (feature and symbol)
	// - Pipeline operations (trigger runs, run history)
	// - System operations (health checks, status, database stats, backups)
	srv := server.New(server.Config{
		Log:       log,
		PanelDB:   container.PanelDB,
		MetricsDB: container.MetricsDB,
		CacheDB:   container.CacheDB,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in goroutine
	// The HTTP server runs in a separate goroutine so the scheduler and the
	// shutdown signal handling run on the main goroutine.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start the cron scheduler
	// Background jobs cover the recompute cycle and housekeeping:
	// - Pipeline recompute (full metrics recompute from the stored panel)
	// - WAL checkpoint monitoring and cache cleanup
	// - Daily and weekly database maintenance
	// - Cloud backups (only when object storage is configured)
	container.Scheduler.Start()
	if jobs.S3Backup != nil {
		log.Info().Msg("Cloud backup jobs scheduled")
	}

	// Catch-up run on startup
	// Stored results go stale when the server was down across a scheduled
	// recompute or has never run at all. The run executes in the background;
	// progress is visible via /api/pipeline/runs and the event stream.
	if stale, reason := container.PipelineRunner.NeedsRun(); stale {
		log.Info().Str("reason", reason).Msg("Stored results are stale, starting catch-up pipeline run")
		if _, err := container.PipelineRunner.Start(context.Background()); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			log.Error().Err(err).Msg("Failed to start catch-up pipeline run")
		}
	}

	// Wait for interrupt signal
	// The application blocks here until it receives SIGINT (Ctrl+C) or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no new background jobs start mid-shutdown.
	// Stop blocks until in-flight jobs finish.
	container.Scheduler.Stop()

	// Graceful shutdown
	// The HTTP server is given up to 10 seconds to finish processing in-flight
	// requests and close connections gracefully.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// All dependency wiring is handled by di.Wire()
// The DI container initializes:
//   - internal/di/databases.go (database initialization)
//   - internal/di/repositories.go (repository creation)
//   - internal/di/services.go (service creation)
//   - internal/di/jobs.go (scheduler job registration)
//   - internal/di/wire.go (main orchestration)
