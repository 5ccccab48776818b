package correlation

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE correlation_cells (
			matrix       TEXT NOT NULL,
			row_key      TEXT NOT NULL,
			col_key      TEXT NOT NULL,
			value        REAL,
			observations INTEGER NOT NULL,
			computed_at  TEXT NOT NULL,
			PRIMARY KEY (matrix, row_key, col_key)
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreMatrix_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	engine := NewEngine(zerolog.Nop())

	// The flat column gives the matrix null cells to round-trip too.
	m := engine.correlate(
		[]string{"a", "b", "flat"},
		[][]float64{{1, 2, 3}, {3, 1, 2}, {7, 7, 7}},
		3,
	)

	require.NoError(t, repo.StoreMatrix(MatrixFeatures, m))

	loaded, err := repo.GetMatrix(MatrixFeatures)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, m.Keys, loaded.Keys)
	assert.Equal(t, m.Cells, loaded.Cells)
	assert.Equal(t, m.Observations, loaded.Observations)
	assert.NotEmpty(t, loaded.ComputedAt)
}

func TestGetMatrix_NotComputed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	loaded, err := repo.GetMatrix(MatrixSymbols)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreMatrix_ReplacesPrevious(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	engine := NewEngine(zerolog.Nop())

	wide := engine.correlate(
		[]string{"a", "b", "c"},
		[][]float64{{1, 2, 3}, {2, 4, 6}, {3, 1, 2}},
		3,
	)
	require.NoError(t, repo.StoreMatrix(MatrixSymbols, wide))

	// A later run with fewer symbols fully replaces the stored shape.
	narrow := engine.correlate(
		[]string{"a", "b"},
		[][]float64{{1, 2, 3, 4}, {4, 3, 2, 1}},
		4,
	)
	require.NoError(t, repo.StoreMatrix(MatrixSymbols, narrow))

	loaded, err := repo.GetMatrix(MatrixSymbols)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, []string{"a", "b"}, loaded.Keys)
	assert.Equal(t, 4, loaded.Observations)
	require.NotNil(t, loaded.Cells[0][1])
	assert.InDelta(t, -1.0, *loaded.Cells[0][1], 1e-12)
}

func TestStoreMatrix_MatricesAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	engine := NewEngine(zerolog.Nop())

	features := engine.correlate(
		[]string{"close", "volume"},
		[][]float64{{1, 2, 3}, {2, 4, 6}},
		3,
	)
	symbols := engine.correlate(
		[]string{"AAPL", "MSFT", "NVDA"},
		[][]float64{{1, 2, 3}, {2, 4, 6}, {3, 2, 1}},
		3,
	)

	require.NoError(t, repo.StoreMatrix(MatrixFeatures, features))
	require.NoError(t, repo.StoreMatrix(MatrixSymbols, symbols))

	loadedFeatures, err := repo.GetMatrix(MatrixFeatures)
	require.NoError(t, err)
	require.NotNil(t, loadedFeatures)
	assert.Len(t, loadedFeatures.Keys, 2)

	loadedSymbols, err := repo.GetMatrix(MatrixSymbols)
	require.NoError(t, err)
	require.NotNil(t, loadedSymbols)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, loadedSymbols.Keys)
}
