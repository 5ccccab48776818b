// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/config"
	"github.com/aristath/metron/internal/reliability"
	"github.com/aristath/metron/internal/scheduler"
)

// RegisterJobs creates the scheduler, registers every background job
// with its configured cron schedule and returns the job instances for
// manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container.Scheduler = scheduler.New(container.EventManager, log)
	instances := &JobInstances{}

	// ==========================================
	// Job 1: Pipeline Recompute
	// ==========================================
	recompute := scheduler.NewPipelineRecomputeJob(container.PipelineRunner, log)
	if err := container.Scheduler.AddJob(cfg.Schedules.Recompute, recompute); err != nil {
		return nil, fmt.Errorf("failed to register pipeline recompute job: %w", err)
	}
	instances.PipelineRecompute = recompute

	// ==========================================
	// Job 2: WAL Checkpoint Check
	// ==========================================
	walCheck := scheduler.NewCheckWALCheckpointsJob(container.Databases(), log)
	if err := container.Scheduler.AddJob(cfg.Schedules.WALCheck, walCheck); err != nil {
		return nil, fmt.Errorf("failed to register WAL check job: %w", err)
	}
	instances.WALCheck = walCheck

	// ==========================================
	// Job 3: Cache Cleanup
	// ==========================================
	cacheCleanup := scheduler.NewCacheCleanupJob(container.CalcCache, log)
	if err := container.Scheduler.AddJob(cfg.Schedules.CacheCleanup, cacheCleanup); err != nil {
		return nil, fmt.Errorf("failed to register cache cleanup job: %w", err)
	}
	instances.CacheCleanup = cacheCleanup

	// ==========================================
	// Job 4: Daily Maintenance
	// ==========================================
	backupDir := filepath.Join(cfg.DataDir, "backups")
	dailyMaintenance := reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, backupDir, log)
	if err := container.Scheduler.AddJob(cfg.Schedules.DailyMaintenance, dailyMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register daily maintenance job: %w", err)
	}
	instances.DailyMaintenance = dailyMaintenance

	// ==========================================
	// Job 5: Weekly Maintenance
	// ==========================================
	weeklyMaintenance := reliability.NewWeeklyMaintenanceJob(container.Databases(), log)
	if err := container.Scheduler.AddJob(cfg.Schedules.WeeklyVacuum, weeklyMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register weekly maintenance job: %w", err)
	}
	instances.WeeklyMaintenance = weeklyMaintenance

	// ==========================================
	// S3 CLOUD BACKUP JOBS (optional - only if configured)
	// ==========================================

	if container.S3BackupService != nil {
		// Job 6: S3 Backup
		s3Backup := reliability.NewS3BackupJob(container.S3BackupService)
		if err := container.Scheduler.AddJob(cfg.Schedules.Backup, s3Backup); err != nil {
			return nil, fmt.Errorf("failed to register S3 backup job: %w", err)
		}
		instances.S3Backup = s3Backup

		// Job 7: S3 Backup Rotation
		s3Rotation := reliability.NewS3BackupRotationJob(container.S3BackupService, cfg.Backup.RetentionDays)
		if err := container.Scheduler.AddJob(cfg.Schedules.BackupRotation, s3Rotation); err != nil {
			return nil, fmt.Errorf("failed to register S3 backup rotation job: %w", err)
		}
		instances.S3BackupRotation = s3Rotation

		log.Info().Msg("S3 backup jobs registered")
	} else {
		log.Debug().Msg("S3 backup service not available - cloud backup jobs not registered")
	}

	log.Info().Msg("All scheduler jobs registered")

	return instances, nil
}
