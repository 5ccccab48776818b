// Package metrics computes the derived series for a price panel: lagged
// daily returns, monthly and yearly bars, fixed-width rolling statistics,
// yearly summaries and technical indicators. Everything here is derived
// data; a pipeline run can rebuild all of it from the panel.
package metrics

// Alignment selects how a rolling window sits relative to the row it is
// attributed to. The two modes are picked per consumer, never defaulted:
// correlation features read trailing stats, yearly summaries read
// centered ones.
type Alignment string

const (
	// AlignTrailing attributes the statistic at index i to the window
	// [i-W+1, i], so a row only ever sees history.
	AlignTrailing Alignment = "trailing"

	// AlignCentered attributes the statistic at index i to the window
	// [i-W/2, i+W-1-W/2]. Positions whose window would cross either
	// series edge stay null instead of shrinking the window.
	AlignCentered Alignment = "centered"
)

// ParseAlignment maps a query-parameter value to an Alignment.
func ParseAlignment(s string) (Alignment, bool) {
	switch Alignment(s) {
	case AlignTrailing:
		return AlignTrailing, true
	case AlignCentered:
		return AlignCentered, true
	}
	return "", false
}

// DerivedPricePoint is a panel row that survived validation, carrying the
// lag-derived fields. DailyReturn is a percentage rounded to two decimals
// and is nil on each symbol's first valid row.
type DerivedPricePoint struct {
	Symbol           string   `json:"symbol"`
	Date             string   `json:"date"`
	Open             *float64 `json:"open,omitempty"`
	High             *float64 `json:"high,omitempty"`
	Low              *float64 `json:"low,omitempty"`
	Close            *float64 `json:"close,omitempty"`
	AdjustedClose    float64  `json:"adjusted_close"`
	Volume           *int64   `json:"volume,omitempty"`
	PreviousAdjusted *float64 `json:"previous_adjusted,omitempty"`
	DailyReturn      *float64 `json:"daily_return,omitempty"`
	DailyRange       *float64 `json:"daily_range,omitempty"`
}

// PeriodBar is one monthly or yearly aggregation bar. Period is the
// "YYYY-MM" date prefix for monthly bars and "YYYY" for yearly ones.
// PeriodReturn chains against the previous period present in the data
// and is nil on each symbol's first period.
type PeriodBar struct {
	Symbol        string   `json:"symbol"`
	Period        string   `json:"period"`
	Open          *float64 `json:"open,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Low           *float64 `json:"low,omitempty"`
	Close         *float64 `json:"close,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
	PeriodReturn  *float64 `json:"period_return,omitempty"`
	TradingDays   int      `json:"trading_days"`
}

// RollingStat holds the windowed statistics attributed to one derived row
// under one alignment. Both values are nil until the window is fully
// populated with non-null inputs; partial windows are never imputed.
type RollingStat struct {
	Symbol            string    `json:"symbol"`
	Date              string    `json:"date"`
	Alignment         Alignment `json:"alignment"`
	RollingVolatility *float64  `json:"rolling_volatility,omitempty"`
	RollingVolume     *float64  `json:"rolling_volume,omitempty"`
}

// VolatilitySummary aggregates the centered rolling volatility over one
// calendar year. Both values are nil when no window in the year was
// populated; an empty year is a null summary, not an error.
type VolatilitySummary struct {
	Symbol        string   `json:"symbol"`
	Year          string   `json:"year"`
	AvgVolatility *float64 `json:"avg_volatility,omitempty"`
	MaxVolatility *float64 `json:"max_volatility,omitempty"`
	Observations  int      `json:"observations"`
}

// VolumeSummary is the same shape as VolatilitySummary over the centered
// rolling volume.
type VolumeSummary struct {
	Symbol       string   `json:"symbol"`
	Year         string   `json:"year"`
	AvgVolume    *float64 `json:"avg_volume,omitempty"`
	MaxVolume    *float64 `json:"max_volume,omitempty"`
	Observations int      `json:"observations"`
}

// IndicatorPoint carries the technical indicator values for one derived
// row. Values are nil through each indicator's lookback prefix.
type IndicatorPoint struct {
	Symbol string   `json:"symbol"`
	Date   string   `json:"date"`
	RSI14  *float64 `json:"rsi_14,omitempty"`
	SMA20  *float64 `json:"sma_20,omitempty"`
}

// SymbolMetrics bundles every per-symbol output of one compute pass so
// the pipeline can persist them in a single transaction.
type SymbolMetrics struct {
	Symbol              string
	Derived             []DerivedPricePoint
	Monthly             []PeriodBar
	Yearly              []PeriodBar
	Trailing            []RollingStat
	Centered            []RollingStat
	VolatilitySummaries []VolatilitySummary
	VolumeSummaries     []VolumeSummary
	Indicators          []IndicatorPoint

	// ExcludedRows counts panel rows dropped by the adjusted-close
	// validity check before any derivation ran.
	ExcludedRows int
}
