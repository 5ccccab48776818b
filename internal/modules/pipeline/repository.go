package pipeline

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository persists pipeline run records.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "pipeline_repository").Logger(),
	}
}

// CreateRun inserts the initial record for a run that just started.
func (r *Repository) CreateRun(run *Run) error {
	_, err := r.db.Exec(`
		INSERT INTO pipeline_runs (id, started_at, status, symbols_total, panel_hash)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Status, run.SymbolsTotal, run.PanelHash)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (r *Repository) FinishRun(run *Run) error {
	result, err := r.db.Exec(`
		UPDATE pipeline_runs
		SET finished_at = ?, status = ?, symbols_ok = ?, symbols_failed = ?, duration_ms = ?, error = ?
		WHERE id = ?
	`, run.FinishedAt, run.Status, run.SymbolsOK, run.SymbolsFailed, run.DurationMS, nullString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// GetRun loads one run by id. Returns nil without error when absent.
func (r *Repository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at, status, symbols_total, symbols_ok,
		       symbols_failed, duration_ms, panel_hash, error
		FROM pipeline_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, status, symbols_total, symbols_ok,
		       symbols_failed, duration_ms, panel_hash, error
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LastSuccessfulRun returns the newest run whose outputs are usable
// (completed or partial), or nil when there has never been one.
func (r *Repository) LastSuccessfulRun() (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at, status, symbols_total, symbols_ok,
		       symbols_failed, duration_ms, panel_hash, error
		FROM pipeline_runs
		WHERE status IN (?, ?)
		ORDER BY started_at DESC
		LIMIT 1
	`, StatusCompleted, StatusPartial)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last successful run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var finishedAt sql.NullString
	var durationMS sql.NullInt64
	var panelHash, errMsg sql.NullString

	err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Status,
		&run.SymbolsTotal, &run.SymbolsOK, &run.SymbolsFailed,
		&durationMS, &panelHash, &errMsg)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.String
	}
	if durationMS.Valid {
		run.DurationMS = &durationMS.Int64
	}
	run.PanelHash = panelHash.String
	run.Error = errMsg.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
