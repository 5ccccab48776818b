package metrics

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/modules/panel"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int64) *int64       { return &i }

// adjustedOnly builds a sparse panel row carrying just the adjusted close.
func adjustedOnly(symbol, date string, adjusted float64) panel.PricePoint {
	return panel.PricePoint{
		Symbol:        symbol,
		Date:          date,
		AdjustedClose: floatPtr(adjusted),
	}
}

func TestDeriveSeries_DailyReturns(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	// Adjusted closes 100 -> 110 -> 99 must yield nil, +10%, -10%.
	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-02", 100),
		adjustedOnly("X", "2024-01-03", 110),
		adjustedOnly("X", "2024-01-04", 99),
	}

	derived, excluded := calc.DeriveSeries("X", points)
	require.Len(t, derived, 3)
	assert.Equal(t, 0, excluded)

	assert.Nil(t, derived[0].DailyReturn)
	assert.Nil(t, derived[0].PreviousAdjusted)

	require.NotNil(t, derived[1].DailyReturn)
	assert.InDelta(t, 10.0, *derived[1].DailyReturn, 1e-9)
	require.NotNil(t, derived[1].PreviousAdjusted)
	assert.InDelta(t, 100.0, *derived[1].PreviousAdjusted, 1e-9)

	require.NotNil(t, derived[2].DailyReturn)
	assert.InDelta(t, -10.0, *derived[2].DailyReturn, 1e-9)
	require.NotNil(t, derived[2].PreviousAdjusted)
	assert.InDelta(t, 110.0, *derived[2].PreviousAdjusted, 1e-9)
}

func TestDeriveSeries_RoundsToTwoDecimals(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	// 100 -> 100.333 is a 0.333% move, which rounds to 0.33.
	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-02", 100),
		adjustedOnly("X", "2024-01-03", 100.333),
	}

	derived, _ := calc.DeriveSeries("X", points)
	require.Len(t, derived, 2)
	require.NotNil(t, derived[1].DailyReturn)
	assert.Equal(t, 0.33, *derived[1].DailyReturn)
}

func TestDeriveSeries_SortsByDate(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-04", 99),
		adjustedOnly("X", "2024-01-02", 100),
		adjustedOnly("X", "2024-01-03", 110),
	}

	derived, _ := calc.DeriveSeries("X", points)
	require.Len(t, derived, 3)
	assert.Equal(t, "2024-01-02", derived[0].Date)
	assert.Equal(t, "2024-01-03", derived[1].Date)
	assert.Equal(t, "2024-01-04", derived[2].Date)
	assert.InDelta(t, 10.0, *derived[1].DailyReturn, 1e-9)
}

func TestDeriveSeries_SkipsInvalidRowsInLagChain(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	// The zero and missing adjusted rows must vanish entirely; the row
	// after them lags against 100, not against the bad prints.
	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-02", 100),
		adjustedOnly("X", "2024-01-03", 0),
		{Symbol: "X", Date: "2024-01-04"},
		adjustedOnly("X", "2024-01-05", 110),
	}

	derived, excluded := calc.DeriveSeries("X", points)
	require.Len(t, derived, 2)
	assert.Equal(t, 2, excluded)

	assert.Equal(t, "2024-01-02", derived[0].Date)
	assert.Equal(t, "2024-01-05", derived[1].Date)
	require.NotNil(t, derived[1].DailyReturn)
	assert.InDelta(t, 10.0, *derived[1].DailyReturn, 1e-9)
	require.NotNil(t, derived[1].PreviousAdjusted)
	assert.InDelta(t, 100.0, *derived[1].PreviousAdjusted, 1e-9)
}

func TestDeriveSeries_FirstValidRowHasNilReturn(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	// When the first row is invalid, the first *valid* row is the one
	// with the nil return.
	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-02", -5),
		adjustedOnly("X", "2024-01-03", 100),
		adjustedOnly("X", "2024-01-04", 102),
	}

	derived, excluded := calc.DeriveSeries("X", points)
	require.Len(t, derived, 2)
	assert.Equal(t, 1, excluded)
	assert.Nil(t, derived[0].DailyReturn)
	require.NotNil(t, derived[1].DailyReturn)
	assert.InDelta(t, 2.0, *derived[1].DailyReturn, 1e-9)
}

func TestDeriveSeries_DailyRange(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	full := panel.PricePoint{
		Symbol: "X", Date: "2024-01-02",
		Open: floatPtr(101), High: floatPtr(104.5), Low: floatPtr(99.5),
		Close: floatPtr(103), AdjustedClose: floatPtr(103), Volume: intPtr(1_000_000),
	}
	noLow := panel.PricePoint{
		Symbol: "X", Date: "2024-01-03",
		High: floatPtr(105), AdjustedClose: floatPtr(104),
	}

	derived, _ := calc.DeriveSeries("X", []panel.PricePoint{full, noLow})
	require.Len(t, derived, 2)

	require.NotNil(t, derived[0].DailyRange)
	assert.InDelta(t, 5.0, *derived[0].DailyRange, 1e-9)
	assert.Nil(t, derived[1].DailyRange, "range needs both high and low")
}

func TestDeriveSeries_AllRowsInvalid(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	points := []panel.PricePoint{
		adjustedOnly("X", "2024-01-02", 0),
		{Symbol: "X", Date: "2024-01-03"},
	}

	derived, excluded := calc.DeriveSeries("X", points)
	assert.Empty(t, derived)
	assert.Equal(t, 2, excluded)
}

func TestNewCalculator_WindowFallback(t *testing.T) {
	calc := NewCalculator(0, zerolog.Nop())
	assert.Equal(t, DefaultWindow, calc.Window())

	calc = NewCalculator(10, zerolog.Nop())
	assert.Equal(t, 10, calc.Window())
}
