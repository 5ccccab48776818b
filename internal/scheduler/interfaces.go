package scheduler

import (
	"context"

	"github.com/aristath/metron/internal/modules/pipeline"
)

// RecomputeRunner defines the contract for pipeline runs
// Used by the recompute job to enable testing with stubs
type RecomputeRunner interface {
	NeedsRun() (bool, string)
	Run(ctx context.Context) (*pipeline.Run, error)
}

// CacheCleaner defines the contract for expired cache entry removal
// Used by the cache cleanup job to enable testing with stubs
type CacheCleaner interface {
	Cleanup() (int64, error)
}
