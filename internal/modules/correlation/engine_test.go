package correlation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestCorrelate_KnownValues(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// y doubles x exactly, z is a known r=0.5 permutation of x.
	columns := [][]float64{
		{1, 2, 3}, // x
		{2, 4, 6}, // y
		{1, 3, 2}, // z
	}

	m := engine.correlate([]string{"x", "y", "z"}, columns, 3)
	require.Equal(t, []string{"x", "y", "z"}, m.Keys)
	assert.Equal(t, 3, m.Observations)

	for i := range m.Keys {
		require.NotNil(t, m.Cells[i][i])
		assert.Equal(t, 1.0, *m.Cells[i][i])
	}

	require.NotNil(t, m.Cells[0][1])
	assert.InDelta(t, 1.0, *m.Cells[0][1], 1e-12)

	require.NotNil(t, m.Cells[0][2])
	assert.InDelta(t, 0.5, *m.Cells[0][2], 1e-12)
}

func TestCorrelate_IsSymmetric(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	columns := [][]float64{
		{1, 5, 2, 8},
		{3, 1, 4, 1},
		{9, 2, 6, 5},
	}

	m := engine.correlate([]string{"a", "b", "c"}, columns, 4)

	for i := range m.Keys {
		for j := range m.Keys {
			if m.Cells[i][j] == nil {
				assert.Nil(t, m.Cells[j][i])
				continue
			}
			require.NotNil(t, m.Cells[j][i])
			assert.Equal(t, *m.Cells[i][j], *m.Cells[j][i])
		}
	}
}

func TestCorrelate_ZeroVarianceColumn(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// The constant column yields null pairs but keeps its diagonal,
	// and the healthy pair is unaffected.
	columns := [][]float64{
		{1, 2, 3},
		{5, 5, 5},
		{3, 2, 1},
	}

	m := engine.correlate([]string{"x", "flat", "inv"}, columns, 3)

	assert.Nil(t, m.Cells[0][1])
	assert.Nil(t, m.Cells[1][0])
	assert.Nil(t, m.Cells[1][2])
	assert.Nil(t, m.Cells[2][1])

	require.NotNil(t, m.Cells[1][1])
	assert.Equal(t, 1.0, *m.Cells[1][1])

	require.NotNil(t, m.Cells[0][2])
	assert.InDelta(t, -1.0, *m.Cells[0][2], 1e-12)
}

func TestCorrelate_TooFewObservations(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	columns := [][]float64{{1}, {2}}
	m := engine.correlate([]string{"a", "b"}, columns, 1)

	assert.Equal(t, 1, m.Observations)
	assert.Nil(t, m.Cells[0][1])
	assert.Nil(t, m.Cells[1][0])
	require.NotNil(t, m.Cells[0][0])
	assert.Equal(t, 1.0, *m.Cells[0][0])

	// Zero observations must not panic either.
	empty := engine.correlate([]string{"a", "b"}, [][]float64{{}, {}}, 0)
	assert.Nil(t, empty.Cells[0][1])
}

func TestFeatureMatrix_ColumnsFollowFeatureOrder(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// close rises, daily_return falls, volume tracks close exactly.
	rows := []FeatureRow{
		{Symbol: "A", Date: "2024-01-02", Values: []float64{10, 1, 3, 0.5, 100, 10}},
		{Symbol: "A", Date: "2024-01-03", Values: []float64{20, 2, 2, 0.6, 200, 20}},
		{Symbol: "A", Date: "2024-01-04", Values: []float64{30, 3, 1, 0.7, 300, 30}},
	}

	m := engine.FeatureMatrix(rows)
	require.Equal(t, FeatureNames, m.Keys)
	assert.Equal(t, 3, m.Observations)

	closeVsVolume := m.Value("close", "volume")
	require.NotNil(t, closeVsVolume)
	assert.InDelta(t, 1.0, *closeVsVolume, 1e-12)

	closeVsReturn := m.Value("close", "daily_return")
	require.NotNil(t, closeVsReturn)
	assert.InDelta(t, -1.0, *closeVsReturn, 1e-12)
}

func TestMatrix_LongForm(t *testing.T) {
	v := 0.25
	m := &Matrix{
		Keys: []string{"a", "b"},
		Cells: [][]*float64{
			{floatPtr(1.0), &v},
			{&v, floatPtr(1.0)},
		},
		Observations: 10,
	}

	cells := m.LongForm()
	require.Len(t, cells, 4)

	assert.Equal(t, Cell{Row: "a", Col: "a", Value: m.Cells[0][0]}, cells[0])
	assert.Equal(t, Cell{Row: "a", Col: "b", Value: &v}, cells[1])
	assert.Equal(t, Cell{Row: "b", Col: "a", Value: &v}, cells[2])
	assert.Equal(t, Cell{Row: "b", Col: "b", Value: m.Cells[1][1]}, cells[3])
}
