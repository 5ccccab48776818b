package metrics

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/panel"
)

// Constants for the derived-series calculators
const (
	DefaultWindow = 30 // observations per rolling window
	RSIPeriod     = 14 // standard RSI lookback
	SMAPeriod     = 20 // standard SMA lookback
)

// Calculator computes every per-symbol derived series. It is pure with
// respect to storage: callers feed it panel rows and persist the result
// themselves.
type Calculator struct {
	window    int
	validator *panel.Validator
	log       zerolog.Logger
}

// NewCalculator creates a calculator with the given rolling-window width.
// A non-positive width falls back to DefaultWindow.
func NewCalculator(window int, log zerolog.Logger) *Calculator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Calculator{
		window:    window,
		validator: panel.NewValidator(log),
		log:       log.With().Str("component", "calculator").Logger(),
	}
}

// Window returns the configured rolling-window width.
func (c *Calculator) Window() int {
	return c.window
}

// DeriveSeries turns a symbol's panel rows into the derived series. Rows
// without a usable adjusted close are dropped whole: they never appear in
// the output and they never act as the "previous" row for the lag, so one
// bad print cannot corrupt the returns of the rows after it. The second
// return value is the number of rows dropped that way.
//
// daily_return is a percentage rounded to two decimals; it is nil on the
// first surviving row because there is no predecessor to lag against.
func (c *Calculator) DeriveSeries(symbol string, points []panel.PricePoint) ([]DerivedPricePoint, int) {
	sorted := make([]panel.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	derived := make([]DerivedPricePoint, 0, len(sorted))
	excluded := 0
	var prevAdjusted *float64

	for i := range sorted {
		p := &sorted[i]
		if ok, reason := c.validator.CheckAdjusted(p); !ok {
			excluded++
			c.log.Warn().
				Str("symbol", symbol).
				Str("date", p.Date).
				Str("reason", reason).
				Msg("Excluding row from derived series")
			continue
		}

		adjusted := *p.AdjustedClose
		d := DerivedPricePoint{
			Symbol:        symbol,
			Date:          p.Date,
			Open:          p.Open,
			High:          p.High,
			Low:           p.Low,
			Close:         p.Close,
			AdjustedClose: adjusted,
			Volume:        p.Volume,
		}

		if prevAdjusted != nil {
			prev := *prevAdjusted
			ret := round2((adjusted/prev - 1) * 100)
			d.PreviousAdjusted = &prev
			d.DailyReturn = &ret
		}

		if p.High != nil && p.Low != nil {
			r := *p.High - *p.Low
			d.DailyRange = &r
		}

		prevAdjusted = &adjusted
		derived = append(derived, d)
	}

	if excluded > 0 {
		c.log.Info().
			Str("symbol", symbol).
			Int("rows", len(derived)).
			Int("excluded", excluded).
			Msg("Derived series built with exclusions")
	}

	return derived, excluded
}

// round2 rounds half away from zero to two decimals.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
