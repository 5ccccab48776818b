package panel

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository provides access to the panel database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new panel repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "panel_repository").Logger(),
	}
}

// UpsertPrices writes a batch of price rows in a single transaction.
// Existing (symbol, date) rows are replaced, so re-importing a
// corrected file just works.
func (r *Repository) UpsertPrices(points []PricePoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO prices
		(symbol, date, open, high, low, close, adjusted_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range points {
		p := &points[i]
		_, err = stmt.Exec(
			p.Symbol,
			p.Date,
			nullFloat(p.Open),
			nullFloat(p.High),
			nullFloat(p.Low),
			nullFloat(p.Close),
			nullFloat(p.AdjustedClose),
			nullInt(p.Volume),
		)
		if err != nil {
			return fmt.Errorf("failed to insert price for %s %s: %w", p.Symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Int("count", len(points)).
		Msg("Upserted panel prices")

	return nil
}

// GetPrices fetches one symbol's rows in date order.
// limit 0 means all rows.
func (r *Repository) GetPrices(symbol string, limit int) ([]PricePoint, error) {
	query := `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume
		FROM prices
		WHERE symbol = ?
		ORDER BY date ASC
	`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetSymbols lists every symbol in the panel with its coverage
func (r *Repository) GetSymbols() ([]SymbolInfo, error) {
	rows, err := r.db.Query(`
		SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM prices
		GROUP BY symbol
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var infos []SymbolInfo
	for rows.Next() {
		var info SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Rows, &info.FirstDate, &info.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan symbol info: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return infos, nil
}

// ListSymbols returns just the symbol names, in sorted order
func (r *Repository) ListSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM prices ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol names: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol names: %w", err)
	}

	return symbols, nil
}

// DeleteSymbol removes every panel row for one symbol. The next
// pipeline run prunes the symbol's derived tables.
func (r *Repository) DeleteSymbol(symbol string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM prices WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete symbol %s: %w", symbol, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if removed > 0 {
		r.log.Info().Str("symbol", symbol).Int64("rows", removed).Msg("Deleted panel symbol")
	}
	return removed, nil
}

// CountRows returns the total number of panel rows
func (r *Repository) CountRows() (int64, error) {
	var count int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM prices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

// Fingerprint returns a cheap staleness key for the whole panel: row
// count plus the newest import timestamp. Any import changes it.
func (r *Repository) Fingerprint() (string, error) {
	var count int64
	var lastImport sql.NullString

	err := r.db.QueryRow(`SELECT COUNT(*), MAX(imported_at) FROM prices`).Scan(&count, &lastImport)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint panel: %w", err)
	}

	return fmt.Sprintf("%d|%s", count, lastImport.String), nil
}

// RecordImport appends one row to the import audit table
func (r *Repository) RecordImport(source string, symbols, rowCount int) error {
	_, err := r.db.Exec(
		`INSERT INTO imports (source, symbols, rows) VALUES (?, ?, ?)`,
		source, symbols, rowCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// GetImports lists recent imports, newest first
func (r *Repository) GetImports(limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, source, symbols, rows, imported_at
		FROM imports
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var records []ImportRecord
	for rows.Next() {
		var rec ImportRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Symbols, &rec.Rows, &rec.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imports: %w", err)
	}

	return records, nil
}

func scanPricePoints(rows *sql.Rows) ([]PricePoint, error) {
	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		var open, high, low, closePrice, adjusted sql.NullFloat64
		var volume sql.NullInt64

		err := rows.Scan(&p.Symbol, &p.Date, &open, &high, &low, &closePrice, &adjusted, &volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}

		if open.Valid {
			p.Open = &open.Float64
		}
		if high.Valid {
			p.High = &high.Float64
		}
		if low.Valid {
			p.Low = &low.Float64
		}
		if closePrice.Valid {
			p.Close = &closePrice.Float64
		}
		if adjusted.Valid {
			p.AdjustedClose = &adjusted.Float64
		}
		if volume.Valid {
			p.Volume = &volume.Int64
		}

		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return points, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
