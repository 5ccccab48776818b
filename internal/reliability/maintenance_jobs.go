package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/metron/internal/database"
)

// DailyMaintenanceJob performs daily database maintenance
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	dataDir   string
	backupDir string
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	dataDir string,
	backupDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		backupDir: backupDir,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()
	ctx := context.Background()

	// Step 1: Integrity check for all databases
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("CRITICAL: Database integrity check failed")
			return fmt.Errorf("CRITICAL: %w", err)
		}
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
			// Not critical, the next checkpoint will catch up
		}
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err // HALT if critical
	}

	// Step 4: Verify the most recent local snapshot
	if err := j.verifyLatestSnapshot(); err != nil {
		j.log.Error().Err(err).Msg("Snapshot verification failed")
		// Log but don't halt, the next backup replaces it
	}

	// Step 5: Report database sizes
	j.reportDatabaseSizes()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	// CRITICAL: Less than 500MB
	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free", availableGB)
	}

	if availableGB < 5.0 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Low disk space - consider cleanup")
	} else if availableGB < 10.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// verifyLatestSnapshot checks integrity of the newest local snapshot
func (j *DailyMaintenanceJob) verifyLatestSnapshot() error {
	snapshotsDir := filepath.Join(j.backupDir, "snapshots")

	entries, err := os.ReadDir(snapshotsDir)
	if os.IsNotExist(err) {
		j.log.Debug().Msg("No local snapshots to verify")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	// Directory names are timestamps, the newest sorts last
	var latest string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsDir() {
			latest = entries[i].Name()
			break
		}
	}

	if latest == "" {
		j.log.Debug().Msg("No local snapshots to verify")
		return nil
	}

	snapshotDir := filepath.Join(snapshotsDir, latest)

	for dbName := range j.databases {
		backupPath := filepath.Join(snapshotDir, dbName+".db")

		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			j.log.Error().
				Str("database", dbName).
				Str("path", backupPath).
				Msg("Snapshot file missing")
			continue
		}

		backupDB, err := sql.Open("sqlite", backupPath)
		if err != nil {
			j.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Failed to open snapshot")
			continue
		}

		var result string
		err = backupDB.QueryRow("PRAGMA integrity_check").Scan(&result)
		backupDB.Close()

		if err != nil || result != "ok" {
			j.log.Error().
				Str("database", dbName).
				Str("result", result).
				Msg("Snapshot integrity check failed")
		} else {
			j.log.Debug().
				Str("database", dbName).
				Msg("Snapshot verified")
		}
	}

	return nil
}

// reportDatabaseSizes logs the on-disk size of each database and its WAL
func (j *DailyMaintenanceJob) reportDatabaseSizes() {
	for name, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Warn().Str("database", name).Err(err).Msg("Failed to read database stats")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Msg("Database metrics")
	}
}

// WeeklyMaintenanceJob performs weekly database maintenance
type WeeklyMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job
func NewWeeklyMaintenanceJob(
	databases map[string]*database.DB,
	log zerolog.Logger,
) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	// VACUUM the derived stores (metrics, cache). Both churn on every
	// pipeline run; the panel only grows through imports and is left alone.
	ephemeralDBs := []string{"metrics", "cache"}
	for _, dbName := range ephemeralDBs {
		if db, ok := j.databases[dbName]; ok {
			j.log.Info().Str("database", dbName).Msg("Running VACUUM")

			if err := j.vacuumDatabase(db, dbName); err != nil {
				j.log.Error().
					Str("database", dbName).
					Err(err).
					Msg("VACUUM failed")
				// Continue with other databases
			}
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Weekly maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// vacuumDatabase performs VACUUM on a database
func (j *WeeklyMaintenanceJob) vacuumDatabase(db *database.DB, name string) error {
	j.log.Debug().Str("database", name).Msg("Starting VACUUM")

	var sizeBefore float64
	if stats, err := db.GetStats(); err == nil {
		sizeBefore = float64(stats.PageCount*stats.PageSize) / 1024 / 1024
	}

	if err := db.Vacuum(); err != nil {
		return err
	}

	var sizeAfter float64
	if stats, err := db.GetStats(); err == nil {
		sizeAfter = float64(stats.PageCount*stats.PageSize) / 1024 / 1024
	}

	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}
