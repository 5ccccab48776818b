package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/events"
)

// archivePrefix names backup archives in the bucket:
// metron-backup-2026-01-08-143022.tar.gz
const archivePrefix = "metron-backup-"

// S3BackupService archives database snapshots and ships them to an
// S3-compatible bucket
type S3BackupService struct {
	client   *S3Client
	backup   *BackupService
	dataDir  string
	eventMgr *events.Manager
	log      zerolog.Logger
}

// BackupInfo describes a backup archive stored in the bucket
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewS3BackupService creates a new cloud backup service
func NewS3BackupService(
	client *S3Client,
	backup *BackupService,
	dataDir string,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *S3BackupService {
	return &S3BackupService{
		client:   client,
		backup:   backup,
		dataDir:  dataDir,
		eventMgr: eventMgr,
		log:      log.With().Str("service", "s3_backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots every database, archives the snapshot
// to tar.gz and uploads it to the bucket
func (s *S3BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Str("bucket", s.client.Bucket()).Msg("Starting cloud backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata, err := s.backup.Snapshot(stagingDir)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format(snapshotTimeFormat)
	archiveName := fmt.Sprintf("%s%s.tar.gz", archivePrefix, timestamp)
	archivePath := filepath.Join(stagingDir, archiveName)

	filenames := make([]string, 0, len(metadata.Databases)+1)
	for _, db := range metadata.Databases {
		filenames = append(filenames, db.Filename)
	}
	filenames = append(filenames, metadataFilename)

	if err := s.createArchive(archivePath, stagingDir, filenames); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.client.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.eventMgr.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
		Archive:   archiveName,
		SizeBytes: archiveInfo.Size(),
		Databases: len(metadata.Databases),
	})

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_mb", archiveInfo.Size()/1024/1024).
		Msg("Cloud backup completed successfully")

	return nil
}

// ListBackups lists all backup archives stored in the bucket, newest
// first
func (s *S3BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.client.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := *obj.Key
		timestamp, ok := parseArchiveTimestamp(filename)
		if !ok {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes archives older than the retention period.
// Keeps a minimum of 3 archives regardless of age; a retention of 0
// keeps everything beyond that minimum.
func (s *S3BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep {
		s.log.Info().Int("count", len(backups)).Msg("Too few backups to rotate")
		return nil
	}

	var cutoffTime time.Time
	if retentionDays > 0 {
		cutoffTime = time.Now().AddDate(0, 0, -retentionDays)
	}

	deletedCount := 0
	for i, backup := range backups {
		// The list is newest first, so the minimum survives at the front
		if i < minBackupsToKeep {
			continue
		}

		if retentionDays == 0 {
			continue
		}

		if backup.Timestamp.Before(cutoffTime) {
			if err := s.client.Delete(ctx, backup.Filename); err != nil {
				s.log.Error().
					Err(err).
					Str("filename", backup.Filename).
					Msg("Failed to delete old backup")
				continue
			}

			s.log.Info().
				Str("filename", backup.Filename).
				Time("timestamp", backup.Timestamp).
				Msg("Deleted old backup")

			deletedCount++
		}
	}

	s.log.Info().
		Int("deleted", deletedCount).
		Int("remaining", len(backups)-deletedCount).
		Msg("Backup rotation completed")

	return nil
}

// parseArchiveTimestamp extracts the creation time from an archive name
func parseArchiveTimestamp(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
		return time.Time{}, false
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), ".tar.gz")

	timestamp, err := time.Parse(snapshotTimeFormat, raw)
	if err != nil {
		return time.Time{}, false
	}

	return timestamp, true
}

// createArchive writes the named files from sourceDir into a tar.gz
// archive
func (s *S3BackupService) createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		filePath := filepath.Join(sourceDir, filename)

		if err := s.addFileToArchive(tarWriter, filePath, filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive
func (s *S3BackupService) addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}

// S3BackupJob wraps S3BackupService.CreateAndUploadBackup for the scheduler
type S3BackupJob struct {
	service *S3BackupService
}

// NewS3BackupJob creates a new cloud backup job
func NewS3BackupJob(service *S3BackupService) *S3BackupJob {
	return &S3BackupJob{service: service}
}

// Run executes the cloud backup
func (j *S3BackupJob) Run() error {
	return j.service.CreateAndUploadBackup(context.Background())
}

// Name returns the job name for the scheduler
func (j *S3BackupJob) Name() string {
	return "s3_backup"
}

// S3BackupRotationJob wraps S3BackupService.RotateOldBackups for the scheduler
type S3BackupRotationJob struct {
	service       *S3BackupService
	retentionDays int
}

// NewS3BackupRotationJob creates a new backup rotation job
func NewS3BackupRotationJob(service *S3BackupService, retentionDays int) *S3BackupRotationJob {
	return &S3BackupRotationJob{service: service, retentionDays: retentionDays}
}

// Run executes the backup rotation
func (j *S3BackupRotationJob) Run() error {
	return j.service.RotateOldBackups(context.Background(), j.retentionDays)
}

// Name returns the job name for the scheduler
func (j *S3BackupRotationJob) Name() string {
	return "s3_backup_rotation"
}
