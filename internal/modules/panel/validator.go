package panel

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Validator checks imported rows. Structural problems reject the whole
// input before anything is written; consistency oddities only produce
// warnings because real vendor data contains them and downstream code
// treats the affected fields as missing.
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a new panel validator
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log: log.With().Str("component", "panel_validator").Logger(),
	}
}

// CheckAdjusted classifies a row's adjusted close.
// Returns (usable, reason); reason is empty for usable rows.
func (v *Validator) CheckAdjusted(p *PricePoint) (bool, string) {
	if p.AdjustedClose == nil {
		return false, "missing_adjusted_close"
	}

	val := *p.AdjustedClose
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return false, "non_finite_adjusted_close"
	}
	if val <= 0 {
		return false, "non_positive_adjusted_close"
	}

	return true, ""
}

// ConsistencyWarnings returns human-readable warnings for a row whose
// OHLC values contradict each other or whose volume is negative.
// The row is still imported; the warnings surface in the import result.
func (v *Validator) ConsistencyWarnings(p *PricePoint) []string {
	var warnings []string

	if p.High != nil && p.Low != nil && *p.High < *p.Low {
		warnings = append(warnings, fmt.Sprintf("%s %s: high %.4f below low %.4f", p.Symbol, p.Date, *p.High, *p.Low))
	}
	if p.High != nil && p.Close != nil && *p.High < *p.Close {
		warnings = append(warnings, fmt.Sprintf("%s %s: high %.4f below close %.4f", p.Symbol, p.Date, *p.High, *p.Close))
	}
	if p.Low != nil && p.Close != nil && *p.Low > *p.Close {
		warnings = append(warnings, fmt.Sprintf("%s %s: low %.4f above close %.4f", p.Symbol, p.Date, *p.Low, *p.Close))
	}
	if p.Volume != nil && *p.Volume < 0 {
		warnings = append(warnings, fmt.Sprintf("%s %s: negative volume %d", p.Symbol, p.Date, *p.Volume))
	}

	return warnings
}

// ValidateBatch runs structural checks across a parsed batch: every
// row needs a symbol and a parseable date, and (symbol, date) must be
// unique within the batch. The first violation rejects the input.
func (v *Validator) ValidateBatch(points []PricePoint) error {
	if len(points) == 0 {
		return &ImportError{Reason: "empty_input", Detail: "no rows found"}
	}

	seen := make(map[string]struct{}, len(points))
	for i := range points {
		p := &points[i]

		if p.Symbol == "" {
			return &ImportError{
				Reason: "bad_value",
				Detail: "row has empty symbol",
				Line:   i + 2, // account for header line
			}
		}
		if _, err := time.Parse("2006-01-02", p.Date); err != nil {
			return badDateErr(p.Date, i+2)
		}

		key := p.Symbol + "|" + p.Date
		if _, dup := seen[key]; dup {
			return duplicateKeyErr(p.Symbol, p.Date, i+2)
		}
		seen[key] = struct{}{}
	}

	return nil
}
