package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/pipeline"
)

// PipelineRecomputeJob runs the nightly metrics recompute. The run is
// skipped when the panel has not changed and the last results are still
// fresh.
type PipelineRecomputeJob struct {
	runner RecomputeRunner
	log    zerolog.Logger
}

// NewPipelineRecomputeJob creates a new recompute job
func NewPipelineRecomputeJob(runner RecomputeRunner, log zerolog.Logger) *PipelineRecomputeJob {
	return &PipelineRecomputeJob{
		runner: runner,
		log:    log.With().Str("job", "pipeline_recompute").Logger(),
	}
}

// Name returns the job name
func (j *PipelineRecomputeJob) Name() string {
	return "pipeline_recompute"
}

// Run executes the recompute job
func (j *PipelineRecomputeJob) Run() error {
	stale, reason := j.runner.NeedsRun()
	if !stale {
		j.log.Info().Str("reason", reason).Msg("Skipping recompute, results are current")
		return nil
	}

	j.log.Info().Str("reason", reason).Msg("Starting scheduled recompute")

	run, err := j.runner.Run(context.Background())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			j.log.Info().Msg("Skipping recompute, a run is already in progress")
			return nil
		}
		return fmt.Errorf("scheduled recompute failed: %w", err)
	}

	evt := j.log.Info()
	if run.SymbolsFailed > 0 {
		evt = j.log.Warn()
	}
	evt.
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("symbols_ok", run.SymbolsOK).
		Int("symbols_failed", run.SymbolsFailed).
		Msg("Scheduled recompute finished")

	return nil
}
