// Package pipeline orchestrates full recomputes: panel in, every derived
// table out. Per-symbol stages run concurrently with one symbol's
// failure isolated from the rest; the correlation stage is the single
// synchronization point and runs only after all symbols finish.
package pipeline

import "errors"

// Run statuses as stored in pipeline_runs.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial" // some symbols failed, the rest completed
	StatusFailed    = "failed"
)

// ErrRunInProgress is returned when a run is requested while another is
// still active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Run is one pipeline run record.
type Run struct {
	ID            string  `json:"id"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    *string `json:"finished_at,omitempty"`
	Status        string  `json:"status"`
	SymbolsTotal  int     `json:"symbols_total"`
	SymbolsOK     int     `json:"symbols_ok"`
	SymbolsFailed int     `json:"symbols_failed"`
	DurationMS    *int64  `json:"duration_ms,omitempty"`
	PanelHash     string  `json:"panel_hash,omitempty"`
	Error         string  `json:"error,omitempty"`
}
