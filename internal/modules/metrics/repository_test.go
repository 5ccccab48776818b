package metrics

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
		CREATE TABLE derived_prices (
			symbol            TEXT NOT NULL,
			date              TEXT NOT NULL,
			open              REAL,
			high              REAL,
			low               REAL,
			close             REAL,
			adjusted_close    REAL NOT NULL,
			volume            INTEGER,
			previous_adjusted REAL,
			daily_return      REAL,
			daily_range       REAL,
			PRIMARY KEY (symbol, date)
		);
		CREATE TABLE monthly_bars (
			symbol         TEXT NOT NULL,
			period         TEXT NOT NULL,
			open           REAL,
			high           REAL,
			low            REAL,
			close          REAL,
			volume         INTEGER,
			previous_close REAL,
			period_return  REAL,
			trading_days   INTEGER NOT NULL,
			PRIMARY KEY (symbol, period)
		);
		CREATE TABLE yearly_bars (
			symbol         TEXT NOT NULL,
			period         TEXT NOT NULL,
			open           REAL,
			high           REAL,
			low            REAL,
			close          REAL,
			volume         INTEGER,
			previous_close REAL,
			period_return  REAL,
			trading_days   INTEGER NOT NULL,
			PRIMARY KEY (symbol, period)
		);
		CREATE TABLE rolling_stats (
			symbol             TEXT NOT NULL,
			date               TEXT NOT NULL,
			alignment          TEXT NOT NULL,
			rolling_volatility REAL,
			rolling_volume     REAL,
			PRIMARY KEY (symbol, date, alignment)
		);
		CREATE TABLE volatility_summaries (
			symbol          TEXT NOT NULL,
			year            TEXT NOT NULL,
			mean_volatility REAL,
			max_volatility  REAL,
			observations    INTEGER NOT NULL,
			PRIMARY KEY (symbol, year)
		);
		CREATE TABLE volume_summaries (
			symbol              TEXT NOT NULL,
			year                TEXT NOT NULL,
			mean_rolling_volume REAL,
			max_rolling_volume  REAL,
			observations        INTEGER NOT NULL,
			PRIMARY KEY (symbol, year)
		);
		CREATE TABLE indicators (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			rsi_14 REAL,
			sma_20 REAL,
			PRIMARY KEY (symbol, date)
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleMetrics(symbol string) SymbolMetrics {
	return SymbolMetrics{
		Symbol: symbol,
		Derived: []DerivedPricePoint{
			{Symbol: symbol, Date: "2024-01-02", AdjustedClose: 100, Volume: intPtr(1000)},
			{
				Symbol: symbol, Date: "2024-01-03",
				Open: floatPtr(100.5), High: floatPtr(111), Low: floatPtr(99),
				Close: floatPtr(110), AdjustedClose: 110, Volume: intPtr(1500),
				PreviousAdjusted: floatPtr(100), DailyReturn: floatPtr(10.0), DailyRange: floatPtr(12),
			},
		},
		Monthly: []PeriodBar{
			{Symbol: symbol, Period: "2024-01", Open: floatPtr(100.5), Close: floatPtr(110), TradingDays: 2},
		},
		Yearly: []PeriodBar{
			{Symbol: symbol, Period: "2024", Open: floatPtr(100.5), Close: floatPtr(110), TradingDays: 2},
		},
		Trailing: []RollingStat{
			{Symbol: symbol, Date: "2024-01-02", Alignment: AlignTrailing},
			{Symbol: symbol, Date: "2024-01-03", Alignment: AlignTrailing, RollingVolume: floatPtr(1250)},
		},
		Centered: []RollingStat{
			{Symbol: symbol, Date: "2024-01-02", Alignment: AlignCentered},
			{Symbol: symbol, Date: "2024-01-03", Alignment: AlignCentered},
		},
		VolatilitySummaries: []VolatilitySummary{
			{Symbol: symbol, Year: "2024", Observations: 0},
		},
		VolumeSummaries: []VolumeSummary{
			{Symbol: symbol, Year: "2024", AvgVolume: floatPtr(1250), MaxVolume: floatPtr(1250), Observations: 1},
		},
		Indicators: []IndicatorPoint{
			{Symbol: symbol, Date: "2024-01-02"},
			{Symbol: symbol, Date: "2024-01-03", SMA20: floatPtr(105)},
		},
	}
}

func TestRepository_StoreAllRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.StoreAll(sampleMetrics("AAPL")))

	derived, err := repo.GetDerived("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, derived, 2)
	assert.Nil(t, derived[0].DailyReturn)
	require.NotNil(t, derived[1].DailyReturn)
	assert.InDelta(t, 10.0, *derived[1].DailyReturn, 1e-9)
	require.NotNil(t, derived[1].PreviousAdjusted)
	assert.InDelta(t, 100.0, *derived[1].PreviousAdjusted, 1e-9)
	assert.Equal(t, int64(1500), *derived[1].Volume)

	monthly, err := repo.GetMonthlyBars("AAPL")
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-01", monthly[0].Period)
	assert.Nil(t, monthly[0].PeriodReturn)
	assert.Equal(t, 2, monthly[0].TradingDays)

	yearly, err := repo.GetYearlyBars("AAPL")
	require.NoError(t, err)
	require.Len(t, yearly, 1)
	assert.Equal(t, "2024", yearly[0].Period)

	trailing, err := repo.GetRollingStats("AAPL", AlignTrailing)
	require.NoError(t, err)
	require.Len(t, trailing, 2)
	assert.Nil(t, trailing[0].RollingVolume)
	require.NotNil(t, trailing[1].RollingVolume)
	assert.InDelta(t, 1250.0, *trailing[1].RollingVolume, 1e-9)

	centered, err := repo.GetRollingStats("AAPL", AlignCentered)
	require.NoError(t, err)
	require.Len(t, centered, 2)
	assert.Equal(t, AlignCentered, centered[0].Alignment)

	volSummaries, err := repo.GetVolatilitySummaries("AAPL")
	require.NoError(t, err)
	require.Len(t, volSummaries, 1)
	assert.Nil(t, volSummaries[0].AvgVolatility)
	assert.Equal(t, 0, volSummaries[0].Observations)

	volumeSummaries, err := repo.GetVolumeSummaries("AAPL")
	require.NoError(t, err)
	require.Len(t, volumeSummaries, 1)
	require.NotNil(t, volumeSummaries[0].AvgVolume)
	assert.InDelta(t, 1250.0, *volumeSummaries[0].AvgVolume, 1e-9)

	indicators, err := repo.GetIndicators("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, indicators, 2)
	assert.Nil(t, indicators[0].SMA20)
	require.NotNil(t, indicators[1].SMA20)
}

func TestRepository_StoreAllReplacesPreviousRows(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.StoreAll(sampleMetrics("AAPL")))

	// Second pass with a smaller bundle must fully replace the first.
	second := SymbolMetrics{
		Symbol: "AAPL",
		Derived: []DerivedPricePoint{
			{Symbol: "AAPL", Date: "2024-02-01", AdjustedClose: 120},
		},
	}
	require.NoError(t, repo.StoreAll(second))

	derived, err := repo.GetDerived("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, "2024-02-01", derived[0].Date)

	monthly, err := repo.GetMonthlyBars("AAPL")
	require.NoError(t, err)
	assert.Empty(t, monthly)

	trailing, err := repo.GetRollingStats("AAPL", AlignTrailing)
	require.NoError(t, err)
	assert.Empty(t, trailing)
}

func TestRepository_StoreAllIsolatesSymbols(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.StoreAll(sampleMetrics("AAPL")))
	require.NoError(t, repo.StoreAll(sampleMetrics("MSFT")))

	require.NoError(t, repo.PurgeSymbol("AAPL"))

	derived, err := repo.GetDerived("AAPL", 0)
	require.NoError(t, err)
	assert.Empty(t, derived)

	derived, err = repo.GetDerived("MSFT", 0)
	require.NoError(t, err)
	assert.Len(t, derived, 2)

	symbols, err := repo.ListSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, symbols)
}

func TestRepository_SummaryFilters(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.StoreAll(sampleMetrics("AAPL")))
	require.NoError(t, repo.StoreAll(sampleMetrics("MSFT")))

	all, err := repo.GetVolatilitySummaries("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := repo.GetVolumeSummaries("MSFT")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "MSFT", one[0].Symbol)
}

func TestRepository_GetDerivedLimit(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	require.NoError(t, repo.StoreAll(sampleMetrics("AAPL")))

	derived, err := repo.GetDerived("AAPL", 1)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, "2024-01-02", derived[0].Date)
}
