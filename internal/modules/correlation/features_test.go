package correlation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/modules/metrics"
)

func intPtr(i int64) *int64 { return &i }

// completeDerived builds a derived row with every feature populated.
func completeDerived(symbol, date string) metrics.DerivedPricePoint {
	return metrics.DerivedPricePoint{
		Symbol:        symbol,
		Date:          date,
		Close:         floatPtr(101.5),
		AdjustedClose: 101.5,
		Volume:        intPtr(50_000),
		DailyReturn:   floatPtr(0.75),
		DailyRange:    floatPtr(2.25),
	}
}

func completeStat(symbol, date string) metrics.RollingStat {
	return metrics.RollingStat{
		Symbol:            symbol,
		Date:              date,
		Alignment:         metrics.AlignTrailing,
		RollingVolatility: floatPtr(1.1),
		RollingVolume:     floatPtr(48_000),
	}
}

func TestBuildFeatureRows_ValueOrder(t *testing.T) {
	rows := BuildFeatureRows(
		[]metrics.DerivedPricePoint{completeDerived("AAPL", "2024-02-01")},
		[]metrics.RollingStat{completeStat("AAPL", "2024-02-01")},
	)
	require.Len(t, rows, 1)

	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "2024-02-01", rows[0].Date)
	require.Len(t, rows[0].Values, len(FeatureNames))

	// Values align with FeatureNames: close, daily_range, daily_return,
	// rolling_volatility, rolling_volume, volume.
	assert.Equal(t, []float64{101.5, 2.25, 0.75, 1.1, 48_000, 50_000}, rows[0].Values)
}

func TestBuildFeatureRows_DropsIncompleteRows(t *testing.T) {
	dates := []string{"2024-02-01", "2024-02-02", "2024-02-03", "2024-02-04", "2024-02-05", "2024-02-06"}

	derived := make([]metrics.DerivedPricePoint, len(dates))
	trailing := make([]metrics.RollingStat, len(dates))
	for i, date := range dates {
		derived[i] = completeDerived("AAPL", date)
		trailing[i] = completeStat("AAPL", date)
	}

	// Knock one feature out per row; only the last row stays complete.
	derived[0].Close = nil
	derived[1].DailyRange = nil
	derived[2].DailyReturn = nil
	derived[3].Volume = nil
	trailing[4].RollingVolatility = nil

	rows := BuildFeatureRows(derived, trailing)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-02-06", rows[0].Date)
}

func TestBuildFeatureRows_SkipsMisalignedDates(t *testing.T) {
	derived := []metrics.DerivedPricePoint{
		completeDerived("AAPL", "2024-02-01"),
		completeDerived("AAPL", "2024-02-02"),
	}
	trailing := []metrics.RollingStat{
		completeStat("AAPL", "2024-02-01"),
		completeStat("AAPL", "2024-02-09"),
	}

	rows := BuildFeatureRows(derived, trailing)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-02-01", rows[0].Date)
}

func TestBuildFeatureRows_LengthMismatch(t *testing.T) {
	derived := []metrics.DerivedPricePoint{
		completeDerived("AAPL", "2024-02-01"),
		completeDerived("AAPL", "2024-02-02"),
		completeDerived("AAPL", "2024-02-03"),
	}
	trailing := []metrics.RollingStat{
		completeStat("AAPL", "2024-02-01"),
	}

	rows := BuildFeatureRows(derived, trailing)
	assert.Len(t, rows, 1)

	assert.Empty(t, BuildFeatureRows(nil, trailing))
	assert.Empty(t, BuildFeatureRows(derived, nil))
}

func TestBuildFeatureRows_PoolsAcrossSymbols(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	var pooled []FeatureRow
	for _, symbol := range []string{"AAPL", "MSFT"} {
		derived := []metrics.DerivedPricePoint{
			completeDerived(symbol, "2024-02-01"),
			completeDerived(symbol, "2024-02-02"),
		}
		trailing := []metrics.RollingStat{
			completeStat(symbol, "2024-02-01"),
			completeStat(symbol, "2024-02-02"),
		}
		pooled = append(pooled, BuildFeatureRows(derived, trailing)...)
	}

	require.Len(t, pooled, 4)

	// Identical rows pool into a degenerate matrix: diagonals hold,
	// off-diagonals are null because every column is constant.
	m := engine.FeatureMatrix(pooled)
	assert.Equal(t, 4, m.Observations)
	assert.Nil(t, m.Value("close", "volume"))
	require.NotNil(t, m.Value("close", "close"))
	assert.Equal(t, 1.0, *m.Value("close", "close"))
}
