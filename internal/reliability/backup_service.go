// Package reliability provides database backup, maintenance and
// cloud archival services.
//
// Backups are cheap here: the panel database is the only data that
// cannot be recomputed, everything else is reproducible from it. The
// snapshot still covers all three databases so a restore brings the
// service back without waiting for a full pipeline run.
package reliability

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/database"
	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/version"
)

const (
	// snapshotTimeFormat names snapshot directories and backup archives.
	// Lexical order equals chronological order.
	snapshotTimeFormat = "2006-01-02-150405"

	// metadataFilename is written into every snapshot directory.
	metadataFilename = "backup-metadata.json"
)

// BackupService creates verified local snapshots of the service databases
type BackupService struct {
	databases map[string]*database.DB
	dataDir   string
	backupDir string
	eventMgr  *events.Manager
	log       zerolog.Logger
}

// BackupMetadata describes one snapshot
type BackupMetadata struct {
	Timestamp     time.Time          `json:"timestamp"`
	Version       string             `json:"version"`
	MetronVersion string             `json:"metron_version"`
	Databases     []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database inside a snapshot
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	dataDir string,
	backupDir string,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		dataDir:   dataDir,
		backupDir: backupDir,
		eventMgr:  eventMgr,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the names of all managed databases, sorted
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase writes a snapshot of a single database using SQLite's
// VACUUM INTO. The copy is compacted and carries no WAL file. Fails if
// the destination file already exists.
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().
		Str("database", dbName).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	_, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath))
	if err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", dbName).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// VerifyBackup runs an integrity check against a snapshot file
func (s *BackupService) VerifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	err = backupDB.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// Snapshot writes a verified copy of every database into destDir along
// with a metadata file listing sizes and checksums. Corrupt copies are
// removed and fail the whole snapshot.
func (s *BackupService) Snapshot(destDir string) (*BackupMetadata, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	names := s.DatabaseNames()
	metadata := BackupMetadata{
		Timestamp:     time.Now().UTC(),
		Version:       "1.0.0",
		MetronVersion: version.Version,
		Databases:     make([]DatabaseMetadata, 0, len(names)),
	}

	for _, dbName := range names {
		dbPath := filepath.Join(destDir, dbName+".db")

		if err := s.BackupDatabase(dbName, dbPath); err != nil {
			s.log.Error().Err(err).Str("database", dbName).Msg("Failed to backup database")
			return nil, fmt.Errorf("failed to backup %s: %w", dbName, err)
		}

		if err := s.VerifyBackup(dbPath); err != nil {
			os.Remove(dbPath)
			return nil, fmt.Errorf("snapshot of %s failed verification: %w", dbName, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s backup: %w", dbName, err)
		}

		checksum, err := fileChecksum(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", dbName, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      dbName,
			Filename:  dbName + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(destDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	return &metadata, nil
}

// LocalBackup snapshots every database into a timestamped directory
// under the backup root and prunes old snapshots. Returns the snapshot
// directory path.
func (s *BackupService) LocalBackup() (string, error) {
	s.log.Info().Msg("Starting local backup")
	startTime := time.Now()

	snapshotDir := filepath.Join(s.backupDir, "snapshots", time.Now().Format(snapshotTimeFormat))

	metadata, err := s.Snapshot(snapshotDir)
	if err != nil {
		os.RemoveAll(snapshotDir)
		return "", err
	}

	if err := s.rotateLocalSnapshots(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate local snapshots")
		// The snapshot itself succeeded
	}

	var totalBytes int64
	for _, db := range metadata.Databases {
		totalBytes += db.SizeBytes
	}

	s.eventMgr.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
		Archive:   snapshotDir,
		SizeBytes: totalBytes,
		Databases: len(metadata.Databases),
	})

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("snapshot_dir", snapshotDir).
		Int64("size_bytes", totalBytes).
		Msg("Local backup completed successfully")

	return snapshotDir, nil
}

// LatestSnapshotDir returns the newest local snapshot directory, or
// false when none exist.
func (s *BackupService) LatestSnapshotDir() (string, bool) {
	snapshotsDir := filepath.Join(s.backupDir, "snapshots")

	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		return "", false
	}

	// Directory names are timestamps, so entries arrive oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsDir() {
			return filepath.Join(snapshotsDir, entries[i].Name()), true
		}
	}

	return "", false
}

// rotateLocalSnapshots deletes snapshots older than 30 days.
// Keeps a minimum of 3 snapshots regardless of age.
func (s *BackupService) rotateLocalSnapshots() error {
	snapshotsDir := filepath.Join(s.backupDir, "snapshots")

	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		return fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	type snapshot struct {
		name      string
		timestamp time.Time
	}

	snapshots := make([]snapshot, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		timestamp, err := time.Parse(snapshotTimeFormat, entry.Name())
		if err != nil {
			s.log.Warn().Str("dir", entry.Name()).Msg("Failed to parse timestamp from directory name")
			continue
		}

		snapshots = append(snapshots, snapshot{name: entry.Name(), timestamp: timestamp})
	}

	// Newest first
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].timestamp.After(snapshots[j].timestamp)
	})

	const minSnapshotsToKeep = 3
	cutoff := time.Now().AddDate(0, 0, -30)

	for i, snap := range snapshots {
		if i < minSnapshotsToKeep {
			continue
		}

		if snap.timestamp.Before(cutoff) {
			path := filepath.Join(snapshotsDir, snap.name)
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().
					Str("path", path).
					Err(err).
					Msg("Failed to delete old snapshot")
			} else {
				s.log.Debug().
					Str("path", path).
					Msg("Deleted old snapshot")
			}
		}
	}

	return nil
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
