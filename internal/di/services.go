// Package di provides dependency injection for service implementations.
package di

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/config"
	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/calculations"
	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/modules/pipeline"
	"github.com/aristath/metron/internal/reliability"
)

// InitializeServices creates all services and stores them in the container.
// Services are created in dependency order to ensure all dependencies exist.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// ==========================================
	// STEP 1: Initialize Event System
	// ==========================================

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// ==========================================
	// STEP 2: Initialize Domain Services
	// ==========================================

	// Panel service (ingest, validation, raw price access)
	container.PanelService = panel.NewService(
		container.PanelRepo,
		panel.NewValidator(log),
		container.EventManager,
		log,
	)

	// Metrics service (returns, bars, rolling statistics, indicators)
	calc := metrics.NewCalculator(cfg.RollingWindow, log)
	container.MetricsService = metrics.NewService(calc, container.MetricsRepo, log)

	// Correlation service (feature and symbol matrices)
	container.CorrelationService = correlation.NewService(
		correlation.NewEngine(log),
		container.CorrelationRepo,
		container.EventManager,
		log,
	)

	// ==========================================
	// STEP 3: Initialize Calculation Cache and Pipeline Runner
	// ==========================================

	container.CalcCache = calculations.NewCache(
		container.CacheDB.Conn(),
		time.Duration(cfg.CacheTTLHours)*time.Hour,
		log,
	)

	container.PipelineRunner = pipeline.NewRunner(
		container.PanelService,
		container.MetricsService,
		container.CorrelationService,
		container.CalcCache,
		container.PipelineRepo,
		container.EventManager,
		cfg.Parallelism,
		log,
	)
	container.PipelineRunner.SetAllowlist(cfg.Symbols)

	// ==========================================
	// STEP 4: Initialize Reliability Services
	// ==========================================

	backupDir := filepath.Join(cfg.DataDir, "backups")
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		cfg.DataDir,
		backupDir,
		container.EventManager,
		log,
	)

	// Cloud backup services (optional - only if a bucket is configured)
	if cfg.Backup != nil {
		s3Client, err := reliability.NewS3Client(
			cfg.Backup.Endpoint,
			cfg.Backup.Region,
			cfg.Backup.Bucket,
			cfg.Backup.AccessKey,
			cfg.Backup.SecretKey,
			log,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - cloud backup disabled")
		} else {
			container.S3Client = s3Client
			container.S3BackupService = reliability.NewS3BackupService(
				s3Client,
				container.BackupService,
				cfg.DataDir,
				container.EventManager,
				log,
			)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backup services initialized")
		}
	} else {
		log.Debug().Msg("Backup bucket not configured - cloud backup disabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}
