package reliability

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/database"
	"github.com/aristath/metron/internal/events"
)

// newTestDatabases opens panel and metrics databases under dataDir and
// seeds the panel with a couple of rows.
func newTestDatabases(t *testing.T, dataDir string) map[string]*database.DB {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	panelDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "panel.db"),
		Profile: database.ProfileLedger,
		Name:    "panel",
	})
	require.NoError(t, err)
	t.Cleanup(func() { panelDB.Close() })

	_, err = panelDB.Conn().Exec("CREATE TABLE prices (id INTEGER PRIMARY KEY, symbol TEXT)")
	require.NoError(t, err)
	_, err = panelDB.Conn().Exec("INSERT INTO prices (symbol) VALUES ('AAPL'), ('MSFT')")
	require.NoError(t, err)

	metricsDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "metrics.db"),
		Profile: database.ProfileStandard,
		Name:    "metrics",
	})
	require.NoError(t, err)
	t.Cleanup(func() { metricsDB.Close() })

	return map[string]*database.DB{
		"panel":   panelDB,
		"metrics": metricsDB,
	}
}

func TestBackupService_Snapshot(t *testing.T) {
	log := zerolog.Nop()

	t.Run("snapshots every database with metadata", func(t *testing.T) {
		tempDir := t.TempDir()
		dataDir := filepath.Join(tempDir, "data")
		databases := newTestDatabases(t, dataDir)

		service := NewBackupService(databases, dataDir, filepath.Join(tempDir, "backups"), nil, log)

		destDir := filepath.Join(tempDir, "snapshot")
		metadata, err := service.Snapshot(destDir)
		require.NoError(t, err)
		require.Len(t, metadata.Databases, 2)

		// Sorted by name
		assert.Equal(t, "metrics", metadata.Databases[0].Name)
		assert.Equal(t, "panel", metadata.Databases[1].Name)
		for _, db := range metadata.Databases {
			assert.True(t, strings.HasPrefix(db.Checksum, "sha256:"))
			assert.Greater(t, db.SizeBytes, int64(0))
		}

		// The snapshot carries the panel data
		snapDB, err := sql.Open("sqlite", filepath.Join(destDir, "panel.db"))
		require.NoError(t, err)
		defer snapDB.Close()

		var count int
		require.NoError(t, snapDB.QueryRow("SELECT COUNT(*) FROM prices").Scan(&count))
		assert.Equal(t, 2, count)

		// Metadata file round-trips
		raw, err := os.ReadFile(filepath.Join(destDir, metadataFilename))
		require.NoError(t, err)

		var stored BackupMetadata
		require.NoError(t, json.Unmarshal(raw, &stored))
		assert.Equal(t, metadata.Databases, stored.Databases)
		assert.NotEmpty(t, stored.MetronVersion)
	})

	t.Run("fails for unknown database", func(t *testing.T) {
		tempDir := t.TempDir()
		service := NewBackupService(map[string]*database.DB{}, tempDir, tempDir, nil, log)

		err := service.BackupDatabase("absent", filepath.Join(tempDir, "absent.db"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestBackupService_LocalBackup(t *testing.T) {
	log := zerolog.Nop()

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	backupDir := filepath.Join(tempDir, "backups")
	databases := newTestDatabases(t, dataDir)

	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	var announced []*events.BackupCompletedData
	bus.Subscribe(events.BackupCompleted, func(e *events.Event) {
		if data, ok := e.GetTypedData().(*events.BackupCompletedData); ok {
			announced = append(announced, data)
		}
	})

	service := NewBackupService(databases, dataDir, backupDir, manager, log)

	snapshotDir, err := service.LocalBackup()
	require.NoError(t, err)

	for _, filename := range []string{"panel.db", "metrics.db", metadataFilename} {
		_, err := os.Stat(filepath.Join(snapshotDir, filename))
		assert.NoError(t, err, "snapshot should contain %s", filename)
	}

	// Directory name parses as a timestamp
	_, err = time.Parse(snapshotTimeFormat, filepath.Base(snapshotDir))
	assert.NoError(t, err)

	latest, ok := service.LatestSnapshotDir()
	require.True(t, ok)
	assert.Equal(t, snapshotDir, latest)

	require.Len(t, announced, 1)
	assert.Equal(t, snapshotDir, announced[0].Archive)
	assert.Equal(t, 2, announced[0].Databases)
	assert.Greater(t, announced[0].SizeBytes, int64(0))
}

func TestBackupService_RotateLocalSnapshots(t *testing.T) {
	log := zerolog.Nop()

	// makeSnapshots creates fake snapshot directories with the given ages.
	makeSnapshots := func(t *testing.T, backupDir string, ages []time.Duration) []string {
		t.Helper()
		names := make([]string, 0, len(ages))
		for _, age := range ages {
			name := time.Now().Add(-age).Format(snapshotTimeFormat)
			require.NoError(t, os.MkdirAll(filepath.Join(backupDir, "snapshots", name), 0755))
			names = append(names, name)
		}
		return names
	}

	listSnapshots := func(t *testing.T, backupDir string) []string {
		t.Helper()
		entries, err := os.ReadDir(filepath.Join(backupDir, "snapshots"))
		require.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		return names
	}

	t.Run("keeps minimum three snapshots regardless of age", func(t *testing.T) {
		backupDir := t.TempDir()
		old := 40 * 24 * time.Hour
		makeSnapshots(t, backupDir, []time.Duration{old, old + time.Hour, old + 2*time.Hour})

		service := NewBackupService(map[string]*database.DB{}, backupDir, backupDir, nil, log)
		require.NoError(t, service.rotateLocalSnapshots())

		assert.Len(t, listSnapshots(t, backupDir), 3)
	})

	t.Run("deletes old snapshots beyond the minimum", func(t *testing.T) {
		backupDir := t.TempDir()
		old := 40 * 24 * time.Hour
		names := makeSnapshots(t, backupDir, []time.Duration{
			time.Hour, 2 * time.Hour, 3 * time.Hour, old, old + time.Hour,
		})

		service := NewBackupService(map[string]*database.DB{}, backupDir, backupDir, nil, log)
		require.NoError(t, service.rotateLocalSnapshots())

		remaining := listSnapshots(t, backupDir)
		assert.Len(t, remaining, 3)
		assert.NotContains(t, remaining, names[3])
		assert.NotContains(t, remaining, names[4])
	})

	t.Run("keeps recent snapshots beyond the minimum", func(t *testing.T) {
		backupDir := t.TempDir()
		makeSnapshots(t, backupDir, []time.Duration{
			time.Hour, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour, 5 * time.Hour,
		})

		service := NewBackupService(map[string]*database.DB{}, backupDir, backupDir, nil, log)
		require.NoError(t, service.rotateLocalSnapshots())

		assert.Len(t, listSnapshots(t, backupDir), 5)
	})
}

func TestBackupService_VerifyBackup(t *testing.T) {
	log := zerolog.Nop()

	t.Run("verifies valid backup", func(t *testing.T) {
		tempDir := t.TempDir()
		backupPath := filepath.Join(tempDir, "test.db")

		db, err := database.New(database.Config{
			Path:    backupPath,
			Profile: database.ProfileStandard,
			Name:    "test",
		})
		require.NoError(t, err)
		db.Close()

		service := NewBackupService(map[string]*database.DB{}, tempDir, tempDir, nil, log)
		assert.NoError(t, service.VerifyBackup(backupPath))
	})

	t.Run("detects corrupted backup", func(t *testing.T) {
		tempDir := t.TempDir()
		backupPath := filepath.Join(tempDir, "corrupted.db")

		err := os.WriteFile(backupPath, []byte("not a valid sqlite database"), 0644)
		require.NoError(t, err)

		service := NewBackupService(map[string]*database.DB{}, tempDir, tempDir, nil, log)
		assert.Error(t, service.VerifyBackup(backupPath))
	})
}
