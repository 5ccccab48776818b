// Package database provides database connection and initialization functionality.
//
// Three databases back the service: panel (imported price history, the
// only data that cannot be recomputed), metrics (derived series, bars,
// rolling statistics and correlation matrices, all reproducible from
// the panel), and cache (ephemeral computation results). Each opens
// with a profile tuned to that role.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DatabaseProfile selects the PRAGMA set and pool sizing a database opens with.
type DatabaseProfile string

const (
	// ProfileLedger favors durability. Used for the panel, whose rows
	// cannot be recomputed if lost.
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileCache favors speed. A lost cache entry costs one recompute.
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard is the balanced default for derived stores.
	ProfileStandard DatabaseProfile = "standard"
)

// DB wraps a SQLite connection opened with a profile
type DB struct {
	conn *sql.DB
	path string
	name string // Database name for logging
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // Friendly name for logging (e.g., "panel", "metrics")
}

// New opens a database, applying the profile's PRAGMAs and pool limits.
// Relative paths are resolved to absolute and parent directories created.
// file: URIs (in-memory databases in tests) are passed through untouched.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	tunePool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn: conn,
		path: cfg.Path,
		name: cfg.Name,
	}, nil
}

// dsn builds the connection string for the modernc driver. PRAGMAs ride
// along as _pragma query parameters so every pooled connection gets them.
func dsn(path string, profile DatabaseProfile) string {
	pragmas := []string{"journal_mode(WAL)"}

	switch profile {
	case ProfileLedger:
		pragmas = append(pragmas,
			"synchronous(FULL)", // Fsync after every write
			"auto_vacuum(NONE)", // Append-mostly, never shrink
		)
	case ProfileCache:
		pragmas = append(pragmas,
			"synchronous(OFF)", // No fsync, entries are recomputable
			"auto_vacuum(FULL)",
			"temp_store(MEMORY)",
		)
	case ProfileStandard:
		pragmas = append(pragmas,
			"synchronous(NORMAL)", // Fsync at checkpoints
			"auto_vacuum(INCREMENTAL)",
			"temp_store(MEMORY)",
		)
	}

	pragmas = append(pragmas,
		"foreign_keys(1)",
		"wal_autocheckpoint(1000)", // Checkpoint every 1000 pages
		"cache_size(-64000)",       // 64MB page cache (negative = KB)
	)

	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteString("?_pragma=")
		} else {
			b.WriteString("&_pragma=")
		}
		b.WriteString(p)
	}
	return b.String()
}

// tunePool sizes the connection pool for a long-running service.
func tunePool(conn *sql.DB, profile DatabaseProfile) {
	open, idle := 25, 5
	if profile == ProfileCache {
		// The cache sees one writer (the pipeline) and the cleanup job
		open, idle = 10, 2
	}

	conn.SetMaxOpenConns(open)
	conn.SetMaxIdleConns(idle)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
// Used by repositories to execute queries
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// schemaFiles maps database names to the schema applied on startup.
var schemaFiles = map[string]string{
	"panel":   "panel_schema.sql",
	"metrics": "metrics_schema.sql",
	"cache":   "cache_schema.sql",
}

// Migrate applies this database's schema file. Every statement in the
// schemas is idempotent (CREATE ... IF NOT EXISTS), so Migrate on an
// already-provisioned database is a no-op.
func (db *DB) Migrate() error {
	schemaFile, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	dir, err := schemasDir()
	if err != nil {
		// No schema directory next to the source. Tables may already
		// exist (pre-provisioned database); let queries decide.
		return nil
	}

	content, err := os.ReadFile(filepath.Join(dir, schemaFile))
	if err != nil {
		return nil
	}

	err = WithTransaction(db.conn, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(string(content))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to apply schema %s to %s: %w", schemaFile, db.name, err)
	}
	return nil
}

// schemasDir locates the schema directory relative to this source file
// (internal/database/schemas), so Migrate works regardless of working
// directory.
func schemasDir() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Join(filepath.Dir(currentFile), "schemas")
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("schemas directory not found at %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("schemas path is not a directory: %s", dir)
	}
	return dir, nil
}

// WithTransaction executes a function within a database transaction,
// handling begin, commit, rollback and panic recovery. The transaction
// is rolled back if the function returns an error or panics.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck pings the database and runs a full integrity check.
// Expensive; meant for the maintenance jobs, not request paths.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}

	return nil
}

// QuickCheck pings the database without the integrity scan
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WALCheckpoint forces a WAL checkpoint. Modes are PASSIVE, FULL,
// RESTART and TRUNCATE; empty defaults to TRUNCATE, which also resets
// the WAL file to minimal size.
func (db *DB) WALCheckpoint(mode string) error {
	if mode == "" {
		mode = "TRUNCATE"
	}

	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim free pages. Expensive on
// large databases; runs from the weekly maintenance job.
func (db *DB) Vacuum() error {
	if _, err := db.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats reports the on-disk footprint of a database
type Stats struct {
	SizeBytes     int64 // Database file size
	WALSizeBytes  int64 // WAL file size
	PageCount     int64
	PageSize      int64
	FreelistCount int64 // Free pages VACUUM could reclaim
}

// GetStats retrieves database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if fileInfo, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
	}
	if fileInfo, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fileInfo.Size()
	}

	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&stats.PageCount); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&stats.PageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA freelist_count").Scan(&stats.FreelistCount); err != nil {
		return nil, fmt.Errorf("failed to get freelist count: %w", err)
	}

	return stats, nil
}
