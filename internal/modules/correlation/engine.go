package correlation

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Matrix is a square, symmetric correlation matrix. Cells are indexed by
// Keys order; a nil cell means the pair was degenerate (zero variance) or
// there were too few observations to correlate.
type Matrix struct {
	Keys         []string     `json:"keys"`
	Cells        [][]*float64 `json:"cells"`
	Observations int          `json:"observations"`
	ComputedAt   string       `json:"computed_at,omitempty"`
}

// Cell is one long-form matrix entry.
type Cell struct {
	Row   string   `json:"row_key"`
	Col   string   `json:"col_key"`
	Value *float64 `json:"value"`
}

// LongForm unpivots the matrix into tidy rows, diagonal included, in
// row-major key order.
func (m *Matrix) LongForm() []Cell {
	cells := make([]Cell, 0, len(m.Keys)*len(m.Keys))
	for i, row := range m.Keys {
		for j, col := range m.Keys {
			cells = append(cells, Cell{Row: row, Col: col, Value: m.Cells[i][j]})
		}
	}
	return cells
}

// Value looks up one cell by key pair.
func (m *Matrix) Value(row, col string) *float64 {
	ri, ci := -1, -1
	for i, k := range m.Keys {
		if k == row {
			ri = i
		}
		if k == col {
			ci = i
		}
	}
	if ri < 0 || ci < 0 {
		return nil
	}
	return m.Cells[ri][ci]
}

// Engine computes Pearson correlation matrices.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new correlation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "correlation_engine").Logger(),
	}
}

// FeatureMatrix correlates the feature columns pairwise over pooled rows
// from all symbols combined. It measures relationships between derived
// features (volume vs volatility and the like), not between two symbols'
// price series; SymbolMatrix answers that question.
func (e *Engine) FeatureMatrix(rows []FeatureRow) *Matrix {
	columns := make([][]float64, len(FeatureNames))
	for f := range FeatureNames {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = rows[i].Values[f]
		}
		columns[f] = col
	}

	e.log.Debug().
		Int("pooled_rows", len(rows)).
		Int("features", len(FeatureNames)).
		Msg("Correlating pooled feature columns")

	return e.correlate(FeatureNames, columns, len(rows))
}

// correlate builds the symmetric matrix for the given equal-length
// columns. The diagonal is always exactly 1.0, even for a degenerate
// column: a variable is perfectly correlated with itself by definition.
// Off-diagonal cells stay nil when either column has no variance or there
// are fewer than two observations.
func (e *Engine) correlate(keys []string, columns [][]float64, observations int) *Matrix {
	k := len(keys)
	m := &Matrix{
		Keys:         append([]string(nil), keys...),
		Cells:        make([][]*float64, k),
		Observations: observations,
	}
	for i := range m.Cells {
		m.Cells[i] = make([]*float64, k)
	}

	variances := make([]float64, k)
	if observations >= 2 {
		for i, col := range columns {
			variances[i] = stat.Variance(col, nil)
		}
	}

	degenerate := 0
	for i := 0; i < k; i++ {
		one := 1.0
		m.Cells[i][i] = &one

		for j := i + 1; j < k; j++ {
			if observations < 2 || variances[i] <= 0 || variances[j] <= 0 {
				degenerate++
				continue
			}

			r := stat.Correlation(columns[i], columns[j], nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				degenerate++
				continue
			}

			v := r
			m.Cells[i][j] = &v
			m.Cells[j][i] = &v
		}
	}

	if degenerate > 0 {
		e.log.Debug().
			Int("null_pairs", degenerate).
			Int("observations", observations).
			Msg("Correlation matrix has null cells")
	}

	return m
}
