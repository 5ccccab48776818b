package correlation

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Stored matrix names.
const (
	MatrixFeatures = "features" // pooled feature-vs-feature matrix
	MatrixSymbols  = "symbols"  // symbol-vs-symbol daily return matrix
)

// Repository persists correlation matrices in long form, one row per
// cell, so both matrices share a single table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new correlation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "correlation_repository").Logger(),
	}
}

// StoreMatrix replaces the stored matrix under the given name with m.
// The delete and insert happen in one transaction so readers never see a
// half-written matrix.
func (r *Repository) StoreMatrix(name string, m *Matrix) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM correlation_cells WHERE matrix = ?", name); err != nil {
		return fmt.Errorf("failed to clear matrix %s: %w", name, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO correlation_cells (matrix, row_key, col_key, value, observations, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	computedAt := m.ComputedAt
	if computedAt == "" {
		computedAt = time.Now().UTC().Format(time.RFC3339)
	}

	for _, cell := range m.LongForm() {
		var value sql.NullFloat64
		if cell.Value != nil {
			value = sql.NullFloat64{Float64: *cell.Value, Valid: true}
		}
		if _, err := stmt.Exec(name, cell.Row, cell.Col, value, m.Observations, computedAt); err != nil {
			return fmt.Errorf("failed to insert cell %s/%s: %w", cell.Row, cell.Col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matrix %s: %w", name, err)
	}

	r.log.Info().
		Str("matrix", name).
		Int("keys", len(m.Keys)).
		Int("observations", m.Observations).
		Msg("Stored correlation matrix")

	return nil
}

// GetMatrix loads the named matrix. Returns nil without error when the
// matrix has never been computed.
func (r *Repository) GetMatrix(name string) (*Matrix, error) {
	rows, err := r.db.Query(`
		SELECT row_key, col_key, value, observations, computed_at
		FROM correlation_cells
		WHERE matrix = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query matrix %s: %w", name, err)
	}
	defer rows.Close()

	type storedCell struct {
		row, col string
		value    sql.NullFloat64
	}

	var cells []storedCell
	keySet := make(map[string]bool)
	observations := 0
	computedAt := ""

	for rows.Next() {
		var c storedCell
		if err := rows.Scan(&c.row, &c.col, &c.value, &observations, &computedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		keySet[c.row] = true
		keySet[c.col] = true
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matrix %s: %w", name, err)
	}

	if len(cells) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	m := &Matrix{
		Keys:         keys,
		Cells:        make([][]*float64, len(keys)),
		Observations: observations,
		ComputedAt:   computedAt,
	}
	for i := range m.Cells {
		m.Cells[i] = make([]*float64, len(keys))
	}

	for _, c := range cells {
		if c.value.Valid {
			v := c.value.Float64
			m.Cells[index[c.row]][index[c.col]] = &v
		}
	}

	return m, nil
}
