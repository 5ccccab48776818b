package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/calculations"
	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/utils"
)

const (
	// MaxResultAge bounds how long stored outputs stay fresh without a
	// rerun, even when the panel is unchanged.
	MaxResultAge = 24 * time.Hour

	cacheKindFeatureCorrelation = "feature_correlation"
)

// Runner executes pipeline runs. At most one run is active at a time.
type Runner struct {
	panel       *panel.Service
	metrics     *metrics.Service
	correlation *correlation.Service
	cache       *calculations.Cache
	repo        *Repository
	eventMgr    *events.Manager
	parallelism int
	allowlist   map[string]bool
	log         zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewRunner creates a new pipeline runner. parallelism caps the
// concurrent per-symbol workers; 0 means one per CPU and 1 makes the
// run fully sequential.
func NewRunner(
	panelSvc *panel.Service,
	metricsSvc *metrics.Service,
	correlationSvc *correlation.Service,
	cache *calculations.Cache,
	repo *Repository,
	eventMgr *events.Manager,
	parallelism int,
	log zerolog.Logger,
) *Runner {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Runner{
		panel:       panelSvc,
		metrics:     metricsSvc,
		correlation: correlationSvc,
		cache:       cache,
		repo:        repo,
		eventMgr:    eventMgr,
		parallelism: parallelism,
		log:         log.With().Str("component", "pipeline_runner").Logger(),
	}
}

// SetAllowlist restricts runs to the given symbols. Symbols in the
// panel but not on the list are skipped and their stored metrics are
// pruned like removed symbols. An empty list means every panel symbol.
func (r *Runner) SetAllowlist(symbols []string) {
	if len(symbols) == 0 {
		r.allowlist = nil
		return
	}
	r.allowlist = make(map[string]bool, len(symbols))
	for _, s := range symbols {
		r.allowlist[utils.NormalizeSymbol(s)] = true
	}
}

// Running reports whether a run is currently active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a run in the background and returns its id before any
// work happens.
func (r *Runner) Start(ctx context.Context) (string, error) {
	if !r.tryAcquire() {
		return "", ErrRunInProgress
	}

	runID := uuid.New().String()
	go func() {
		defer r.release()
		if _, err := r.execute(ctx, runID); err != nil {
			r.log.Error().Err(err).Str("run_id", runID).Msg("Background pipeline run failed")
		}
	}()
	return runID, nil
}

// Run executes a full run synchronously and returns the finished record.
func (r *Runner) Run(ctx context.Context) (*Run, error) {
	if !r.tryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.release()
	return r.execute(ctx, uuid.New().String())
}

// NeedsRun reports whether stored outputs are stale, with the reason.
// Results are stale when there is no usable run yet, the panel changed
// since the last one, or the last one is older than MaxResultAge.
func (r *Runner) NeedsRun() (bool, string) {
	last, err := r.repo.LastSuccessfulRun()
	if err != nil {
		return true, fmt.Sprintf("cannot read run history: %v", err)
	}
	if last == nil {
		return true, "no successful run yet"
	}

	fingerprint, err := r.panel.Fingerprint()
	if err != nil {
		return true, fmt.Sprintf("cannot fingerprint panel: %v", err)
	}
	if last.PanelHash != calculations.HashParts(fingerprint) {
		return true, "panel changed since last run"
	}

	startedAt, err := time.Parse(time.RFC3339, last.StartedAt)
	if err != nil || time.Since(startedAt) > MaxResultAge {
		return true, "last run too old"
	}
	return false, "results current"
}

func (r *Runner) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context, runID string) (*Run, error) {
	defer utils.OperationTimer("pipeline_run", r.log)()
	started := time.Now()

	fingerprint, err := r.panel.Fingerprint()
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to fingerprint panel, result caching disabled for this run")
		fingerprint = ""
	}

	run := &Run{
		ID:        runID,
		StartedAt: started.UTC().Format(time.RFC3339),
		Status:    StatusRunning,
	}
	if fingerprint != "" {
		run.PanelHash = calculations.HashParts(fingerprint)
	}

	infos, err := r.panel.Symbols()
	if err != nil {
		return r.fail(run, started, fmt.Errorf("failed to load panel symbols: %w", err))
	}
	symbols := make([]string, 0, len(infos))
	for _, info := range infos {
		if r.allowlist != nil && !r.allowlist[info.Symbol] {
			continue
		}
		symbols = append(symbols, info.Symbol)
	}
	run.SymbolsTotal = len(symbols)

	if err := r.repo.CreateRun(run); err != nil {
		return nil, err
	}

	r.eventMgr.EmitTyped(events.RunStarted, "pipeline", &events.RunStatusData{
		RunID:        runID,
		Status:       "started",
		SymbolsTotal: len(symbols),
		Timestamp:    time.Now(),
	})
	r.log.Info().
		Str("run_id", runID).
		Int("symbols", len(symbols)).
		Int("parallelism", r.parallelism).
		Msg("Pipeline run started")

	outcomes := r.computeSymbols(ctx, runID, symbols)

	r.pruneRemoved(symbols)

	var stageErrs []string
	if err := ctx.Err(); err != nil {
		stageErrs = append(stageErrs, err.Error())
	} else {
		stageErrs = r.runCorrelations(fingerprint, outcomes)
	}

	okCount, failCount := 0, 0
	for _, o := range outcomes {
		if o.err != nil {
			failCount++
		} else {
			okCount++
		}
	}

	status := StatusCompleted
	switch {
	case len(symbols) > 0 && failCount == len(symbols):
		status = StatusFailed
	case failCount > 0 || len(stageErrs) > 0:
		status = StatusPartial
	}

	run.Status = status
	run.SymbolsOK = okCount
	run.SymbolsFailed = failCount
	run.Error = strings.Join(stageErrs, "; ")
	if status == StatusFailed && run.Error == "" {
		run.Error = "all symbols failed"
	}
	finished := time.Now().UTC().Format(time.RFC3339)
	run.FinishedAt = &finished
	ms := time.Since(started).Milliseconds()
	run.DurationMS = &ms

	if err := r.repo.FinishRun(run); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("Failed to record run result")
	}

	data := &events.RunStatusData{
		RunID:         runID,
		Status:        status,
		SymbolsTotal:  run.SymbolsTotal,
		SymbolsOK:     okCount,
		SymbolsFailed: failCount,
		Error:         run.Error,
		Duration:      time.Since(started).Seconds(),
		Timestamp:     time.Now(),
	}
	r.eventMgr.EmitTyped(data.EventType(), "pipeline", data)

	r.log.Info().
		Str("run_id", runID).
		Str("status", status).
		Int("symbols_ok", okCount).
		Int("symbols_failed", failCount).
		Dur("duration", time.Since(started)).
		Msg("Pipeline run finished")

	if status == StatusFailed {
		return run, fmt.Errorf("pipeline run %s failed: %s", runID, run.Error)
	}
	return run, nil
}

// fail records a run that died before its symbol stages could start.
func (r *Runner) fail(run *Run, started time.Time, runErr error) (*Run, error) {
	run.Status = StatusFailed
	run.Error = runErr.Error()
	finished := time.Now().UTC().Format(time.RFC3339)
	run.FinishedAt = &finished
	ms := time.Since(started).Milliseconds()
	run.DurationMS = &ms

	if err := r.repo.CreateRun(run); err != nil {
		r.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record failed run")
	} else if err := r.repo.FinishRun(run); err != nil {
		r.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record failed run")
	}

	r.eventMgr.EmitTyped(events.RunFailed, "pipeline", &events.RunStatusData{
		RunID:     run.ID,
		Status:    "failed",
		Error:     run.Error,
		Duration:  time.Since(started).Seconds(),
		Timestamp: time.Now(),
	})

	r.log.Error().Err(runErr).Str("run_id", run.ID).Msg("Pipeline run failed")
	return run, runErr
}

type symbolOutcome struct {
	symbol string
	result metrics.SymbolMetrics
	err    error
}

// computeSymbols runs the per-symbol stages through a bounded worker
// group. Results land in a position-indexed slice, so downstream order
// never depends on goroutine interleaving.
func (r *Runner) computeSymbols(ctx context.Context, runID string, symbols []string) []symbolOutcome {
	outcomes := make([]symbolOutcome, len(symbols))
	var completed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = symbolOutcome{symbol: symbol, err: err}
				return err
			}

			outcomes[i] = r.computeSymbol(symbol)

			done := int(completed.Add(1))
			r.eventMgr.EmitTyped(events.RunProgress, "pipeline", &events.RunStatusData{
				RunID:  runID,
				Status: "progress",
				Progress: &events.RunProgressInfo{
					Completed: done,
					Total:     len(symbols),
					Symbol:    symbol,
				},
				Timestamp: time.Now(),
			})
			return nil
		})
	}

	// Per-symbol failures are swallowed by the workers; Wait only
	// surfaces a context cancellation.
	if err := g.Wait(); err != nil {
		r.log.Warn().Err(err).Str("run_id", runID).Msg("Symbol stage interrupted")
	}
	return outcomes
}

// computeSymbol derives and stores one symbol's metrics. An error here
// marks this symbol failed without touching the others.
func (r *Runner) computeSymbol(symbol string) symbolOutcome {
	points, err := r.panel.Prices(symbol, 0)
	if err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, failed to load prices")
		return symbolOutcome{symbol: symbol, err: err}
	}

	m := r.metrics.Compute(symbol, points)
	if err := r.metrics.Store(m); err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, failed to store metrics")
		return symbolOutcome{symbol: symbol, err: err}
	}
	return symbolOutcome{symbol: symbol, result: m}
}

// pruneRemoved drops stored metrics for symbols no longer in the panel,
// so deleted symbols do not linger in derived tables forever.
func (r *Runner) pruneRemoved(symbols []string) {
	current := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		current[s] = true
	}

	stored, err := r.metrics.StoredSymbols()
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to list stored symbols, skipping prune")
		return
	}

	for _, s := range stored {
		if current[s] {
			continue
		}
		if err := r.metrics.PurgeSymbol(s); err != nil {
			r.log.Warn().Err(err).Str("symbol", s).Msg("Failed to prune symbol")
			continue
		}
		r.log.Info().Str("symbol", s).Msg("Pruned symbol no longer in panel")
	}
}

// runCorrelations is the single synchronization point: it sees every
// successful symbol's output at once, strictly after the symbol stages.
func (r *Runner) runCorrelations(fingerprint string, outcomes []symbolOutcome) []string {
	timer := utils.NewTimer("correlation_stage", r.log)

	var pooled []correlation.FeatureRow
	bySymbol := make(map[string][]metrics.DerivedPricePoint)
	defer func() {
		timer.StopWithContext(map[string]interface{}{
			"symbols":     len(bySymbol),
			"pooled_rows": len(pooled),
		})
	}()

	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		bySymbol[o.symbol] = o.result.Derived
		pooled = append(pooled, correlation.BuildFeatureRows(o.result.Derived, o.result.Trailing)...)
	}

	var errs []string
	if err := r.featureMatrixStage(fingerprint, pooled); err != nil {
		r.log.Error().Err(err).Msg("Feature correlation stage failed")
		errs = append(errs, err.Error())
	}
	if _, err := r.correlation.ComputeSymbolMatrix(bySymbol); err != nil {
		r.log.Error().Err(err).Msg("Symbol correlation stage failed")
		errs = append(errs, err.Error())
	}
	return errs
}

// featureMatrixStage computes the pooled matrix, short-circuiting
// through the calculation cache when the panel content is unchanged.
func (r *Runner) featureMatrixStage(fingerprint string, pooled []correlation.FeatureRow) error {
	useCache := r.cache != nil && fingerprint != ""

	var hash string
	if useCache {
		// The allowlist is part of the key: it changes which rows pool
		// into the matrix even when the panel itself is unchanged.
		allowed := make([]string, 0, len(r.allowlist))
		for s := range r.allowlist {
			allowed = append(allowed, s)
		}
		sort.Strings(allowed)
		hash = calculations.HashParts(fingerprint, strconv.Itoa(r.metrics.Window()),
			correlation.FeatureSchemaVersion, strings.Join(allowed, ","))

		var cached correlation.Matrix
		if r.cache.GetValue(cacheKindFeatureCorrelation, hash, &cached) {
			r.log.Debug().Str("hash", hash[:8]).Msg("Using cached feature correlation matrix")
			return r.correlation.StoreFeatureMatrix(&cached)
		}
	}

	m, err := r.correlation.ComputeFeatureMatrix(pooled)
	if err != nil {
		return err
	}
	if useCache {
		if err := r.cache.SetValue(cacheKindFeatureCorrelation, hash, m, 0); err != nil {
			r.log.Warn().Err(err).Msg("Failed to cache feature correlation matrix")
		}
	}
	return nil
}
