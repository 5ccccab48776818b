package correlation

import (
	"sort"

	"github.com/aristath/metron/internal/modules/metrics"
)

// SymbolMatrix correlates symbols pairwise on their daily return series.
// Series are pivoted wide by date and restricted to dates where every
// symbol has a non-null return, so each pair is compared over the same
// observations.
func (e *Engine) SymbolMatrix(derivedBySymbol map[string][]metrics.DerivedPricePoint) *Matrix {
	symbols := make([]string, 0, len(derivedBySymbol))
	for symbol := range derivedBySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// Pivot to date -> symbol -> return, counting how many symbols
	// cover each date.
	returnsByDate := make(map[string]map[string]float64)
	for _, symbol := range symbols {
		for _, d := range derivedBySymbol[symbol] {
			if d.DailyReturn == nil {
				continue
			}
			if returnsByDate[d.Date] == nil {
				returnsByDate[d.Date] = make(map[string]float64, len(symbols))
			}
			returnsByDate[d.Date][symbol] = *d.DailyReturn
		}
	}

	dates := make([]string, 0, len(returnsByDate))
	for date, bySymbol := range returnsByDate {
		if len(bySymbol) == len(symbols) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	columns := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		col := make([]float64, len(dates))
		for j, date := range dates {
			col[j] = returnsByDate[date][symbol]
		}
		columns[i] = col
	}

	e.log.Debug().
		Int("symbols", len(symbols)).
		Int("complete_dates", len(dates)).
		Msg("Correlating symbol return series")

	return e.correlate(symbols, columns, len(dates))
}
