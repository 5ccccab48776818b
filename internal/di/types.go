/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/database"
	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/calculations"
	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/modules/pipeline"
	"github.com/aristath/metron/internal/reliability"
	"github.com/aristath/metron/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and handed to the HTTP server.
 *
 * Architecture:
 * - Databases: 3-database architecture (panel, metrics, cache)
 * - Repositories: Data access layer (panel rows, derived metrics, correlations, runs)
 * - Services: Business logic layer (ingest, metrics computation, correlations, pipeline)
 * - Scheduler: Cron-driven background jobs
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases (3-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	PanelDB   *database.DB // Imported price panel (the only data that cannot be recomputed)
	MetricsDB *database.DB // Derived metrics (returns, bars, rolling stats, correlations, runs)
	CacheDB   *database.DB // Ephemeral calculation cache

	// Events
	EventBus     *events.Bus     // Event bus for pub/sub
	EventManager *events.Manager // Event manager (wraps bus)

	// Repositories - Data access layer
	PanelRepo       *panel.Repository       // Raw price rows and import records
	MetricsRepo     *metrics.Repository     // Derived series, bars, summaries, indicators
	CorrelationRepo *correlation.Repository // Correlation matrices
	PipelineRepo    *pipeline.Repository    // Pipeline run records

	// Services - Business logic layer
	PanelService       *panel.Service       // Validated ingest and panel queries
	MetricsService     *metrics.Service     // Per-symbol metric computation and reads
	CorrelationService *correlation.Service // Feature and symbol correlation matrices
	CalcCache          *calculations.Cache  // Msgpack-encoded calculation cache
	PipelineRunner     *pipeline.Runner     // Orchestrates full recomputes

	// Reliability
	BackupService   *reliability.BackupService   // Local database snapshots
	S3Client        *reliability.S3Client        // S3-compatible object storage client (optional)
	S3BackupService *reliability.S3BackupService // Cloud backup service (optional)

	// Scheduling
	Scheduler *scheduler.Scheduler // Cron wrapper running the background jobs

	Log zerolog.Logger
}

// JobInstances holds the registered background jobs so the caller can
// trigger them manually or inspect what got scheduled.
type JobInstances struct {
	PipelineRecompute scheduler.Job
	WALCheck          scheduler.Job
	CacheCleanup      scheduler.Job
	DailyMaintenance  scheduler.Job
	WeeklyMaintenance scheduler.Job

	// Only set when S3 backups are configured
	S3Backup         scheduler.Job
	S3BackupRotation scheduler.Job
}
