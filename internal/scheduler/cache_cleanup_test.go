package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCleaner implements CacheCleaner for tests.
type stubCleaner struct {
	removed int64
	err     error
	calls   int
}

func (c *stubCleaner) Cleanup() (int64, error) {
	c.calls++
	return c.removed, c.err
}

func TestCacheCleanupJob_Name(t *testing.T) {
	job := NewCacheCleanupJob(&stubCleaner{}, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
}

func TestCacheCleanupJob_Run(t *testing.T) {
	t.Run("reports removed entries", func(t *testing.T) {
		cleaner := &stubCleaner{removed: 42}
		job := NewCacheCleanupJob(cleaner, zerolog.Nop())

		err := job.Run()
		require.NoError(t, err)
		assert.Equal(t, 1, cleaner.calls)
	})

	t.Run("wraps cleanup failures", func(t *testing.T) {
		cleaner := &stubCleaner{err: errors.New("cache database is locked")}
		job := NewCacheCleanupJob(cleaner, zerolog.Nop())

		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache cleanup failed")
		assert.Contains(t, err.Error(), "cache database is locked")
	})
}
