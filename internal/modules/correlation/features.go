// Package correlation assembles pooled feature rows from the derived
// tables and computes Pearson correlation matrices: one across derived
// features from all symbols combined, and one across symbols' daily
// return series. Both share the same degenerate rules — the diagonal is
// pinned at 1.0 and a zero-variance column yields null cells, never an
// error.
package correlation

import (
	"github.com/aristath/metron/internal/modules/metrics"
)

// FeatureSchemaVersion tags the pooled feature layout. It goes into
// cache keys, so bumping it on any FeatureNames change turns stale
// cached matrices into misses.
const FeatureSchemaVersion = "v1"

// FeatureNames lists the pooled correlation inputs in matrix order. The
// schema is enumerated on purpose: features are picked by name, never by
// inspecting which columns happen to be numeric, so incidental fields
// like a year integer can never leak into the matrix.
var FeatureNames = []string{
	"close",
	"daily_range",
	"daily_return",
	"rolling_volatility",
	"rolling_volume",
	"volume",
}

// FeatureRow is one complete-case pooled observation: every feature
// present, taken from one (symbol, date).
type FeatureRow struct {
	Symbol string
	Date   string

	// Values is indexed like FeatureNames.
	Values []float64
}

// BuildFeatureRows joins one symbol's derived series with its trailing
// rolling stats and keeps only complete cases: a row with any null
// feature is dropped entirely, never imputed. The two inputs come from
// the same compute pass, so they align positionally; rows are matched by
// index and skipped if the dates ever disagree.
func BuildFeatureRows(derived []metrics.DerivedPricePoint, trailing []metrics.RollingStat) []FeatureRow {
	n := len(derived)
	if len(trailing) < n {
		n = len(trailing)
	}

	rows := make([]FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		d := &derived[i]
		rs := &trailing[i]
		if d.Date != rs.Date {
			continue
		}
		if d.Close == nil || d.DailyRange == nil || d.DailyReturn == nil ||
			d.Volume == nil || rs.RollingVolatility == nil || rs.RollingVolume == nil {
			continue
		}

		rows = append(rows, FeatureRow{
			Symbol: d.Symbol,
			Date:   d.Date,
			Values: []float64{
				*d.Close,
				*d.DailyRange,
				*d.DailyReturn,
				*rs.RollingVolatility,
				*rs.RollingVolume,
				float64(*d.Volume),
			},
		})
	}

	return rows
}
