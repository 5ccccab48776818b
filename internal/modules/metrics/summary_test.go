package metrics

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func centeredStat(date string, volatility, volume *float64) RollingStat {
	return RollingStat{
		Symbol:            "X",
		Date:              date,
		Alignment:         AlignCentered,
		RollingVolatility: volatility,
		RollingVolume:     volume,
	}
}

func TestVolatilitySummaries_AggregatesNonNullValues(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	stats := []RollingStat{
		centeredStat("2023-03-01", nil, nil),
		centeredStat("2023-06-01", floatPtr(2.0), floatPtr(100)),
		centeredStat("2023-09-01", floatPtr(4.0), floatPtr(300)),
		centeredStat("2024-01-05", floatPtr(1.5), nil),
	}

	summaries := calc.VolatilitySummaries("X", stats)
	require.Len(t, summaries, 2)

	y23 := summaries[0]
	assert.Equal(t, "2023", y23.Year)
	assert.Equal(t, 2, y23.Observations)
	require.NotNil(t, y23.AvgVolatility)
	assert.InDelta(t, 3.0, *y23.AvgVolatility, 1e-9)
	require.NotNil(t, y23.MaxVolatility)
	assert.InDelta(t, 4.0, *y23.MaxVolatility, 1e-9)

	y24 := summaries[1]
	assert.Equal(t, "2024", y24.Year)
	assert.Equal(t, 1, y24.Observations)
	assert.InDelta(t, 1.5, *y24.AvgVolatility, 1e-9)
	assert.InDelta(t, 1.5, *y24.MaxVolatility, 1e-9)
}

func TestVolatilitySummaries_EmptyYearIsNullNotError(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	// A year whose every window was truncated still gets a summary row
	// with null aggregates.
	stats := []RollingStat{
		centeredStat("2024-01-02", nil, nil),
		centeredStat("2024-01-03", nil, nil),
	}

	summaries := calc.VolatilitySummaries("X", stats)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2024", summaries[0].Year)
	assert.Nil(t, summaries[0].AvgVolatility)
	assert.Nil(t, summaries[0].MaxVolatility)
	assert.Equal(t, 0, summaries[0].Observations)
}

func TestVolumeSummaries_AggregatesRollingVolume(t *testing.T) {
	calc := NewCalculator(DefaultWindow, zerolog.Nop())

	stats := []RollingStat{
		centeredStat("2023-06-01", floatPtr(2.0), floatPtr(100)),
		centeredStat("2023-09-01", nil, floatPtr(300)),
		centeredStat("2023-12-01", floatPtr(1.0), nil),
	}

	summaries := calc.VolumeSummaries("X", stats)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 2, s.Observations)
	require.NotNil(t, s.AvgVolume)
	assert.InDelta(t, 200.0, *s.AvgVolume, 1e-9)
	require.NotNil(t, s.MaxVolume)
	assert.InDelta(t, 300.0, *s.MaxVolume, 1e-9)
}

func TestSummaries_ShortYearEndToEnd(t *testing.T) {
	// Fewer trading days than the window width: every centered window is
	// truncated, so the yearly summary exists but carries nulls.
	calc := NewCalculator(30, zerolog.Nop())

	points := make([]DerivedPricePoint, 0, 10)
	for i := 0; i < 10; i++ {
		date := fmt.Sprintf("2024-03-%02d", i+1)
		points = append(points, derivedRow(date, floatPtr(0.5), intPtr(1000)))
	}

	centered := calc.RollingStats("X", points, AlignCentered)
	summaries := calc.VolatilitySummaries("X", centered)

	require.Len(t, summaries, 1)
	assert.Nil(t, summaries[0].AvgVolatility)
	assert.Nil(t, summaries[0].MaxVolatility)
	assert.Equal(t, 0, summaries[0].Observations)
}
