// Package panel owns the imported price history: the per-symbol daily
// OHLCV rows every metric downstream is derived from. Imports arrive as
// CSV or JSON, are structurally validated, and land in the panel
// database keyed by (symbol, date).
package panel

import "math"

// PricePoint represents one imported daily OHLCV row.
// Every value column may be missing in the source; missing values are
// carried as nil, never imputed.
type PricePoint struct {
	Symbol        string   `json:"symbol"`
	Date          string   `json:"date"` // ISO date, YYYY-MM-DD
	Open          *float64 `json:"open,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Low           *float64 `json:"low,omitempty"`
	Close         *float64 `json:"close,omitempty"`
	AdjustedClose *float64 `json:"adjusted_close,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
}

// HasUsableAdjusted reports whether the row can anchor return
// calculations: adjusted close present, finite and strictly positive.
func (p *PricePoint) HasUsableAdjusted() bool {
	if p.AdjustedClose == nil {
		return false
	}
	v := *p.AdjustedClose
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// SymbolInfo summarizes one symbol's coverage in the panel
type SymbolInfo struct {
	Symbol    string `json:"symbol"`
	Rows      int    `json:"rows"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}

// ImportRecord is one accepted import, kept for the status endpoint
type ImportRecord struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	Symbols    int    `json:"symbols"`
	Rows       int    `json:"rows"`
	ImportedAt string `json:"imported_at"`
}

// ImportResult reports what an import accepted
type ImportResult struct {
	Source   string   `json:"source"`
	Symbols  int      `json:"symbols"`
	Rows     int      `json:"rows"`
	Warnings []string `json:"warnings,omitempty"`
}
