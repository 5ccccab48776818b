package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
// Used for the METRON_SYMBOLS allowlist and for symbol lists passed in
// query parameters.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// NormalizeSymbol canonicalizes a ticker symbol: trimmed and upper-cased.
// Panel imports and query parameters both go through this so "aapl",
// " AAPL " and "AAPL" address the same series.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
