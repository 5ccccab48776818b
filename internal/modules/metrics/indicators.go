package metrics

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Indicators computes the RSI-14 and SMA-20 series over the close prices
// of a derived series. Rows without a close are skipped entirely; the
// remaining rows form the indicator input in date order. Values are nil
// through each indicator's lookback prefix, and a series too short for an
// indicator leaves that column nil everywhere.
func (c *Calculator) Indicators(symbol string, derived []DerivedPricePoint) []IndicatorPoint {
	dates := make([]string, 0, len(derived))
	closes := make([]float64, 0, len(derived))
	for i := range derived {
		if derived[i].Close == nil {
			continue
		}
		dates = append(dates, derived[i].Date)
		closes = append(closes, *derived[i].Close)
	}
	if len(closes) == 0 {
		return nil
	}

	var rsi, sma []float64
	if len(closes) >= RSIPeriod+1 {
		rsi = talib.Rsi(closes, RSIPeriod)
	}
	if len(closes) >= SMAPeriod {
		sma = talib.Sma(closes, SMAPeriod)
	}

	points := make([]IndicatorPoint, len(dates))
	for i, date := range dates {
		pt := IndicatorPoint{Symbol: symbol, Date: date}
		if rsi != nil && i >= RSIPeriod && !math.IsNaN(rsi[i]) {
			v := rsi[i]
			pt.RSI14 = &v
		}
		if sma != nil && i >= SMAPeriod-1 && !math.IsNaN(sma[i]) {
			v := sma[i]
			pt.SMA20 = &v
		}
		points[i] = pt
	}

	return points
}
