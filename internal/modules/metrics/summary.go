package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// VolatilitySummaries aggregates centered rolling volatility per calendar
// year. Every year that has derived rows gets a summary row; when none of
// its windows were populated the averages stay nil and Observations is
// zero. A short year is a null summary, never an error.
func (c *Calculator) VolatilitySummaries(symbol string, centered []RollingStat) []VolatilitySummary {
	byYear := groupStatsByYear(centered)

	summaries := make([]VolatilitySummary, 0, len(byYear))
	for _, year := range sortedYears(byYear) {
		vals := collectValues(byYear[year], func(rs *RollingStat) *float64 { return rs.RollingVolatility })
		s := VolatilitySummary{
			Symbol:       symbol,
			Year:         year,
			Observations: len(vals),
		}
		if len(vals) > 0 {
			mean := stat.Mean(vals, nil)
			max := maxValue(vals)
			s.AvgVolatility = &mean
			s.MaxVolatility = &max
		}
		summaries = append(summaries, s)
	}

	return summaries
}

// VolumeSummaries is the same aggregation over centered rolling volume.
func (c *Calculator) VolumeSummaries(symbol string, centered []RollingStat) []VolumeSummary {
	byYear := groupStatsByYear(centered)

	summaries := make([]VolumeSummary, 0, len(byYear))
	for _, year := range sortedYears(byYear) {
		vals := collectValues(byYear[year], func(rs *RollingStat) *float64 { return rs.RollingVolume })
		s := VolumeSummary{
			Symbol:       symbol,
			Year:         year,
			Observations: len(vals),
		}
		if len(vals) > 0 {
			mean := stat.Mean(vals, nil)
			max := maxValue(vals)
			s.AvgVolume = &mean
			s.MaxVolume = &max
		}
		summaries = append(summaries, s)
	}

	return summaries
}

func groupStatsByYear(stats []RollingStat) map[string][]*RollingStat {
	byYear := make(map[string][]*RollingStat)
	for i := range stats {
		if len(stats[i].Date) < 4 {
			continue
		}
		year := stats[i].Date[:4]
		byYear[year] = append(byYear[year], &stats[i])
	}
	return byYear
}

func sortedYears(byYear map[string][]*RollingStat) []string {
	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Strings(years)
	return years
}

func collectValues(stats []*RollingStat, pick func(*RollingStat) *float64) []float64 {
	vals := make([]float64, 0, len(stats))
	for _, rs := range stats {
		if v := pick(rs); v != nil {
			vals = append(vals, *v)
		}
	}
	return vals
}

func maxValue(vals []float64) float64 {
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
