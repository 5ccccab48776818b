package metrics

import (
	"gonum.org/v1/gonum/stat"
)

// RollingStats computes the windowed volatility and volume statistics for
// every row of a derived series under one alignment. Volatility is the
// sample standard deviation (N-1 denominator) of daily_return over the
// window; volume is the arithmetic mean.
//
// A row's statistic is nil when the window would cross either series edge,
// or when any covered input is null. The first row's nil daily_return
// therefore keeps every window that touches it null; there is no
// partial-window imputation.
func (c *Calculator) RollingStats(symbol string, derived []DerivedPricePoint, align Alignment) []RollingStat {
	n := len(derived)

	returns := make([]*float64, n)
	volumes := make([]*float64, n)
	for i := range derived {
		returns[i] = derived[i].DailyReturn
		if derived[i].Volume != nil {
			v := float64(*derived[i].Volume)
			volumes[i] = &v
		}
	}

	stats := make([]RollingStat, n)
	for i := range derived {
		rs := RollingStat{
			Symbol:    symbol,
			Date:      derived[i].Date,
			Alignment: align,
		}

		if lo, hi, ok := c.windowBounds(i, n, align); ok {
			if vals, full := windowValues(returns, lo, hi); full {
				sd := stat.StdDev(vals, nil)
				rs.RollingVolatility = &sd
			}
			if vals, full := windowValues(volumes, lo, hi); full {
				mean := stat.Mean(vals, nil)
				rs.RollingVolume = &mean
			}
		}

		stats[i] = rs
	}

	return stats
}

// windowBounds returns the inclusive window [lo, hi] attributed to index i,
// or ok=false when the window would extend past either edge of a series of
// length n. Centered windows put W/2 positions before i, so for even W the
// window reaches one position further forward than back.
func (c *Calculator) windowBounds(i, n int, align Alignment) (lo, hi int, ok bool) {
	switch align {
	case AlignCentered:
		half := c.window / 2
		lo = i - half
		hi = i + c.window - 1 - half
	default:
		lo = i - c.window + 1
		hi = i
	}
	if lo < 0 || hi > n-1 {
		return 0, 0, false
	}
	return lo, hi, true
}

// windowValues collects series[lo..hi], reporting full=false as soon as it
// meets a null.
func windowValues(series []*float64, lo, hi int) (vals []float64, full bool) {
	vals = make([]float64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		if series[k] == nil {
			return nil, false
		}
		vals = append(vals, *series[k])
	}
	return vals, true
}
