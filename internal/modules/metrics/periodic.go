package metrics

import (
	"sort"
)

// MonthlyBars folds a derived series into monthly bars keyed by the
// "YYYY-MM" date prefix.
func (c *Calculator) MonthlyBars(symbol string, derived []DerivedPricePoint) []PeriodBar {
	return c.periodBars(symbol, derived, 7)
}

// YearlyBars folds a derived series into yearly bars keyed by the "YYYY"
// date prefix.
func (c *Calculator) YearlyBars(symbol string, derived []DerivedPricePoint) []PeriodBar {
	return c.periodBars(symbol, derived, 4)
}

// periodBars groups the date-ordered derived rows by a date-prefix key
// and folds each group into one bar: open from the first row carrying an
// open, close from the last row carrying a close, high/low as the extremes
// and volume as the period total. Partial first and last periods are folded
// from whatever rows exist.
//
// period_return chains each bar's close against the close of the previous
// period present in the data, the same skip-over-gaps rule the daily lag
// uses. A bar without a close keeps a nil return and does not advance the
// chain.
func (c *Calculator) periodBars(symbol string, derived []DerivedPricePoint, keyLen int) []PeriodBar {
	groups := make(map[string][]*DerivedPricePoint)
	for i := range derived {
		d := &derived[i]
		if len(d.Date) < keyLen {
			continue
		}
		key := d.Date[:keyLen]
		groups[key] = append(groups[key], d)
	}

	periods := make([]string, 0, len(groups))
	for period := range groups {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	bars := make([]PeriodBar, 0, len(periods))
	var prevClose *float64

	for _, period := range periods {
		rows := groups[period]
		bar := PeriodBar{
			Symbol:      symbol,
			Period:      period,
			TradingDays: len(rows),
		}

		var volume int64
		hasVolume := false
		for _, r := range rows {
			if bar.Open == nil && r.Open != nil {
				v := *r.Open
				bar.Open = &v
			}
			if r.High != nil && (bar.High == nil || *r.High > *bar.High) {
				v := *r.High
				bar.High = &v
			}
			if r.Low != nil && (bar.Low == nil || *r.Low < *bar.Low) {
				v := *r.Low
				bar.Low = &v
			}
			if r.Close != nil {
				v := *r.Close
				bar.Close = &v
			}
			if r.Volume != nil {
				volume += *r.Volume
				hasVolume = true
			}
		}
		if hasVolume {
			bar.Volume = &volume
		}

		if bar.Close != nil {
			if prevClose != nil && *prevClose > 0 {
				prev := *prevClose
				ret := round2((*bar.Close/prev - 1) * 100)
				bar.PreviousClose = &prev
				bar.PeriodReturn = &ret
			}
			v := *bar.Close
			prevClose = &v
		}

		bars = append(bars, bar)
	}

	return bars
}
