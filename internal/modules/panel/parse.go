package panel

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aristath/metron/internal/utils"
)

// Column aliases accepted in CSV headers. Vendors disagree on naming;
// everything is matched lowercase with surrounding whitespace ignored.
var columnAliases = map[string]string{
	"symbol":         "symbol",
	"ticker":         "symbol",
	"date":           "date",
	"open":           "open",
	"high":           "high",
	"low":            "low",
	"close":          "close",
	"adjusted_close": "adjusted_close",
	"adj_close":      "adjusted_close",
	"adjclose":       "adjusted_close",
	"volume":         "volume",
}

// requiredColumns must be present in every CSV header. The value
// columns besides adjusted_close are optional; a file without them
// imports with those fields nil.
var requiredColumns = []string{"symbol", "date", "adjusted_close"}

// ParseCSV reads a CSV price file into rows. The first record is the
// header; column order is free. Empty cells become nil values. Any
// unparseable cell rejects the whole file.
func ParseCSV(r io.Reader) ([]PricePoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ImportError{Reason: "empty_input", Detail: "no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Map canonical column name -> position
	columns := make(map[string]int, len(header))
	for i, name := range header {
		canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue // unknown columns are ignored
		}
		columns[canonical] = i
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, missingColumnErr(required)
		}
	}

	var points []PricePoint
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		p := PricePoint{
			Symbol: utils.NormalizeSymbol(cell(record, columns, "symbol")),
			Date:   strings.TrimSpace(cell(record, columns, "date")),
		}

		if p.Open, err = parseFloatCell(record, columns, "open", line); err != nil {
			return nil, err
		}
		if p.High, err = parseFloatCell(record, columns, "high", line); err != nil {
			return nil, err
		}
		if p.Low, err = parseFloatCell(record, columns, "low", line); err != nil {
			return nil, err
		}
		if p.Close, err = parseFloatCell(record, columns, "close", line); err != nil {
			return nil, err
		}
		if p.AdjustedClose, err = parseFloatCell(record, columns, "adjusted_close", line); err != nil {
			return nil, err
		}
		if p.Volume, err = parseIntCell(record, columns, "volume", line); err != nil {
			return nil, err
		}

		points = append(points, p)
	}

	return points, nil
}

// ParseJSON reads a JSON array of price rows. Field names follow the
// PricePoint JSON tags; absent fields become nil values.
func ParseJSON(r io.Reader) ([]PricePoint, error) {
	var points []PricePoint

	dec := json.NewDecoder(r)
	if err := dec.Decode(&points); err != nil {
		return nil, &ImportError{
			Reason: "bad_value",
			Detail: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	for i := range points {
		points[i].Symbol = utils.NormalizeSymbol(points[i].Symbol)
		points[i].Date = strings.TrimSpace(points[i].Date)
	}

	return points, nil
}

func cell(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseFloatCell(record []string, columns map[string]int, name string, line int) (*float64, error) {
	raw := strings.TrimSpace(cell(record, columns, name))
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badValueErr(name, raw, line)
	}
	return &val, nil
}

func parseIntCell(record []string, columns map[string]int, name string, line int) (*int64, error) {
	raw := strings.TrimSpace(cell(record, columns, name))
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Some vendors export volume as a float ("1.234e+06")
		fval, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || fval != float64(int64(fval)) {
			return nil, badValueErr(name, raw, line)
		}
		iv := int64(fval)
		return &iv, nil
	}
	return &val, nil
}
