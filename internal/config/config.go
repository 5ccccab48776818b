// Package config provides configuration management functionality.
//
// Every knob has a default so the server starts with no configuration
// at all: data lands in ./data, the API listens on 8090, and the
// standard recompute and maintenance schedules apply. Overrides come
// from environment variables, optionally via a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/metron/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for all databases (defaults to "./data", always absolute)
	Port          int
	LogLevel      string
	DevMode       bool
	RollingWindow int      // Observation count for rolling statistics (rows present, not calendar days)
	Parallelism   int      // Concurrent per-symbol workers during a pipeline run; 0 = one per CPU
	Symbols       []string // Optional allowlist; empty = every symbol present in the panel
	CacheTTLHours int      // How long cached computation results stay fresh
	Schedules     SchedulesConfig
	Backup        *BackupConfig // nil when no bucket is configured; backup jobs are not registered then
}

// SchedulesConfig holds cron expressions (six-field, with seconds) for
// the background jobs.
type SchedulesConfig struct {
	Recompute        string // full metrics recompute
	WALCheck         string // WAL size inspection
	CacheCleanup     string // expired cache entry sweep
	DailyMaintenance string // WAL checkpoints + integrity checks
	WeeklyVacuum     string // full VACUUM of all databases
	Backup           string // backup archive creation and upload
	BackupRotation   string // old backup pruning
}

// BackupConfig holds S3-compatible object storage settings for backups.
type BackupConfig struct {
	Endpoint      string // custom endpoint URL, empty for AWS S3 proper
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check METRON_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("METRON_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("METRON_PORT", 8090),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		RollingWindow: getEnvAsInt("METRON_ROLLING_WINDOW", 30),
		Parallelism:   getEnvAsInt("METRON_PARALLELISM", 0),
		Symbols:       utils.ParseCSV(getEnv("METRON_SYMBOLS", "")),
		CacheTTLHours: getEnvAsInt("METRON_CACHE_TTL_HOURS", 24),
		Schedules: SchedulesConfig{
			Recompute:        getEnv("METRON_SCHEDULE_RECOMPUTE", "0 0 1 * * *"),
			WALCheck:         getEnv("METRON_SCHEDULE_WAL_CHECK", "0 15 * * * *"),
			CacheCleanup:     getEnv("METRON_SCHEDULE_CACHE_CLEANUP", "0 30 0 * * *"),
			DailyMaintenance: getEnv("METRON_SCHEDULE_MAINTENANCE", "0 0 2 * * *"),
			WeeklyVacuum:     getEnv("METRON_SCHEDULE_VACUUM", "0 0 4 * * 0"),
			Backup:           getEnv("METRON_SCHEDULE_BACKUP", "0 0 3 * * *"),
			BackupRotation:   getEnv("METRON_SCHEDULE_BACKUP_ROTATION", "0 30 3 * * *"),
		},
		Backup: loadBackupConfig(),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadBackupConfig loads S3 backup settings from the environment.
// Returns nil when no bucket is configured, which disables backups.
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("METRON_S3_BUCKET", "")
	if bucket == "" {
		return nil
	}

	return &BackupConfig{
		Endpoint:      getEnv("METRON_S3_ENDPOINT", ""),
		Region:        getEnv("METRON_S3_REGION", "auto"),
		Bucket:        bucket,
		AccessKey:     getEnv("METRON_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("METRON_S3_SECRET_KEY", ""),
		RetentionDays: getEnvAsInt("METRON_S3_RETENTION_DAYS", 30),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	// A sample standard deviation needs at least two observations
	if c.RollingWindow < 2 {
		return fmt.Errorf("rolling window must be at least 2, got %d", c.RollingWindow)
	}

	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}

	if c.CacheTTLHours < 1 {
		return fmt.Errorf("cache TTL must be at least 1 hour, got %d", c.CacheTTLHours)
	}

	if c.Backup != nil && c.Backup.RetentionDays < 1 {
		return fmt.Errorf("backup retention must be at least 1 day, got %d", c.Backup.RetentionDays)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
