// Package testing provides testing utilities and helpers for the metron project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/metron/internal/database"
)

// NewTestDB creates a migrated SQLite database for a test. The name
// picks the schema: "panel", "metrics" or "cache"; any other name gets
// an empty database. The returned cleanup closes the connection; the
// file itself lives under t.TempDir and vanishes with the test.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}
