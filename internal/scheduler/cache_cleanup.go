package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// CacheCleanupJob purges expired calculation cache entries
type CacheCleanupJob struct {
	cache CacheCleaner
	log   zerolog.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache CacheCleaner, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run executes the cache cleanup job
func (j *CacheCleanupJob) Run() error {
	removed, err := j.cache.Cleanup()
	if err != nil {
		return fmt.Errorf("cache cleanup failed: %w", err)
	}

	j.log.Debug().Int64("removed", removed).Msg("Cache cleanup completed")
	return nil
}
