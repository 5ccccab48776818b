package panel

import "fmt"

// ImportError is a structural problem that rejects an entire input:
// a missing required column, a duplicate (symbol, date) key, or a cell
// that does not parse. Row-level price validity (missing or
// non-positive adjusted close) is NOT an import error; those rows are
// accepted and flagged when metrics are computed.
type ImportError struct {
	Reason string // "missing_column", "duplicate_key", "bad_value", "bad_date", "empty_input"
	Detail string
	Line   int // 1-based input line, 0 when not applicable
}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("import rejected (%s) at line %d: %s", e.Reason, e.Line, e.Detail)
	}
	return fmt.Sprintf("import rejected (%s): %s", e.Reason, e.Detail)
}

func missingColumnErr(column string) *ImportError {
	return &ImportError{
		Reason: "missing_column",
		Detail: fmt.Sprintf("required column %q not found in header", column),
	}
}

func duplicateKeyErr(symbol, date string, line int) *ImportError {
	return &ImportError{
		Reason: "duplicate_key",
		Detail: fmt.Sprintf("duplicate row for %s on %s", symbol, date),
		Line:   line,
	}
}

func badValueErr(column, value string, line int) *ImportError {
	return &ImportError{
		Reason: "bad_value",
		Detail: fmt.Sprintf("column %q has unparseable value %q", column, value),
		Line:   line,
	}
}

func badDateErr(value string, line int) *ImportError {
	return &ImportError{
		Reason: "bad_date",
		Detail: fmt.Sprintf("date %q is not in YYYY-MM-DD form", value),
		Line:   line,
	}
}
