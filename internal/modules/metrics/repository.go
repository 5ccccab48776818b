package metrics

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/database"
)

const (
	monthlyBarsTable = "monthly_bars"
	yearlyBarsTable  = "yearly_bars"
)

// Repository persists derived series to the metrics database. Writes are
// replace-by-symbol: a compute pass owns every row of its symbol, so stale
// rows from a previous run never survive a recompute.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new metrics repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "metrics_repository").Logger(),
	}
}

// StoreAll replaces every derived table's rows for one symbol in a single
// transaction, so readers never see a half-written recompute.
func (r *Repository) StoreAll(m SymbolMetrics) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if err := deleteSymbolTx(tx, m.Symbol); err != nil {
			return err
		}
		if err := insertDerivedTx(tx, m.Derived); err != nil {
			return err
		}
		if err := insertBarsTx(tx, monthlyBarsTable, m.Monthly); err != nil {
			return err
		}
		if err := insertBarsTx(tx, yearlyBarsTable, m.Yearly); err != nil {
			return err
		}
		if err := insertRollingTx(tx, m.Trailing); err != nil {
			return err
		}
		if err := insertRollingTx(tx, m.Centered); err != nil {
			return err
		}
		if err := insertVolatilitySummariesTx(tx, m.VolatilitySummaries); err != nil {
			return err
		}
		if err := insertVolumeSummariesTx(tx, m.VolumeSummaries); err != nil {
			return err
		}
		return insertIndicatorsTx(tx, m.Indicators)
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("symbol", m.Symbol).
		Int("derived", len(m.Derived)).
		Int("monthly_bars", len(m.Monthly)).
		Int("yearly_bars", len(m.Yearly)).
		Int("rolling", len(m.Trailing)+len(m.Centered)).
		Int("indicators", len(m.Indicators)).
		Msg("Stored symbol metrics")

	return nil
}

// PurgeSymbol removes every derived row for a symbol. The pipeline calls
// this for symbols that have disappeared from the panel.
func (r *Repository) PurgeSymbol(symbol string) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return deleteSymbolTx(tx, symbol)
	})
	if err != nil {
		return err
	}

	r.log.Info().Str("symbol", symbol).Msg("Purged symbol metrics")
	return nil
}

// ListSymbols returns the symbols that currently have derived rows
func (r *Repository) ListSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM derived_prices ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query derived symbols: %w", err)
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
		return nil, fmt.Errorf("error iterating derived symbols: %w", err)
	}

	return symbols, nil
}

// GetDerived fetches one symbol's derived rows in date order.
// limit 0 means all rows.
func (r *Repository) GetDerived(symbol string, limit int) ([]DerivedPricePoint, error) {
	query := `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume,
		       previous_adjusted, daily_return, daily_range
		FROM derived_prices
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
		return nil, fmt.Errorf("failed to query derived prices: %w", err)
	}
	defer rows.Close()

	var points []DerivedPricePoint
	for rows.Next() {
		var d DerivedPricePoint
		var open, high, low, closePrice, prevAdj, dailyReturn, dailyRange sql.NullFloat64
		var volume sql.NullInt64

		err := rows.Scan(&d.Symbol, &d.Date, &open, &high, &low, &closePrice,
			&d.AdjustedClose, &volume, &prevAdj, &dailyReturn, &dailyRange)
		if err != nil {
			return nil, fmt.Errorf("failed to scan derived price: %w", err)
		}

		d.Open = floatPtrFromNull(open)
		d.High = floatPtrFromNull(high)
		d.Low = floatPtrFromNull(low)
		d.Close = floatPtrFromNull(closePrice)
		d.PreviousAdjusted = floatPtrFromNull(prevAdj)
		d.DailyReturn = floatPtrFromNull(dailyReturn)
		d.DailyRange = floatPtrFromNull(dailyRange)
		if volume.Valid {
			d.Volume = &volume.Int64
		}

		points = append(points, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derived prices: %w", err)
	}

	return points, nil
}

// GetMonthlyBars fetches one symbol's monthly bars in period order
func (r *Repository) GetMonthlyBars(symbol string) ([]PeriodBar, error) {
	return r.getBars(monthlyBarsTable, symbol)
}

// GetYearlyBars fetches one symbol's yearly bars in period order
func (r *Repository) GetYearlyBars(symbol string) ([]PeriodBar, error) {
	return r.getBars(yearlyBarsTable, symbol)
}

func (r *Repository) getBars(table, symbol string) ([]PeriodBar, error) {
	query := fmt.Sprintf(`
		SELECT symbol, period, open, high, low, close, volume,
		       previous_close, period_return, trading_days
		FROM %s
		WHERE symbol = ?
		ORDER BY period ASC
	`, table)

	rows, err := r.db.Query(query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var bars []PeriodBar
	for rows.Next() {
		var b PeriodBar
		var open, high, low, closePrice, prevClose, periodReturn sql.NullFloat64
		var volume sql.NullInt64

		err := rows.Scan(&b.Symbol, &b.Period, &open, &high, &low, &closePrice,
			&volume, &prevClose, &periodReturn, &b.TradingDays)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}

		b.Open = floatPtrFromNull(open)
		b.High = floatPtrFromNull(high)
		b.Low = floatPtrFromNull(low)
		b.Close = floatPtrFromNull(closePrice)
		b.PreviousClose = floatPtrFromNull(prevClose)
		b.PeriodReturn = floatPtrFromNull(periodReturn)
		if volume.Valid {
			b.Volume = &volume.Int64
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return bars, nil
}

// GetRollingStats fetches one symbol's rolling statistics for one
// alignment, in date order.
func (r *Repository) GetRollingStats(symbol string, align Alignment) ([]RollingStat, error) {
	rows, err := r.db.Query(`
		SELECT symbol, date, alignment, rolling_volatility, rolling_volume
		FROM rolling_stats
		WHERE symbol = ? AND alignment = ?
		ORDER BY date ASC
	`, symbol, string(align))
	if err != nil {
		return nil, fmt.Errorf("failed to query rolling stats: %w", err)
	}
	defer rows.Close()

	var stats []RollingStat
	for rows.Next() {
		var rs RollingStat
		var alignment string
		var vol, volume sql.NullFloat64

		if err := rows.Scan(&rs.Symbol, &rs.Date, &alignment, &vol, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan rolling stat: %w", err)
		}

		rs.Alignment = Alignment(alignment)
		rs.RollingVolatility = floatPtrFromNull(vol)
		rs.RollingVolume = floatPtrFromNull(volume)

		stats = append(stats, rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rolling stats: %w", err)
	}

	return stats, nil
}

// GetVolatilitySummaries lists yearly volatility summaries, for one
// symbol or for the whole panel when symbol is empty.
func (r *Repository) GetVolatilitySummaries(symbol string) ([]VolatilitySummary, error) {
	query := `
		SELECT symbol, year, mean_volatility, max_volatility, observations
		FROM volatility_summaries
	`
	var args []interface{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY symbol ASC, year ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query volatility summaries: %w", err)
	}
	defer rows.Close()

	var summaries []VolatilitySummary
	for rows.Next() {
		var s VolatilitySummary
		var mean, max sql.NullFloat64

		if err := rows.Scan(&s.Symbol, &s.Year, &mean, &max, &s.Observations); err != nil {
			return nil, fmt.Errorf("failed to scan volatility summary: %w", err)
		}

		s.AvgVolatility = floatPtrFromNull(mean)
		s.MaxVolatility = floatPtrFromNull(max)

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volatility summaries: %w", err)
	}

	return summaries, nil
}

// GetVolumeSummaries lists yearly volume summaries, for one symbol or for
// the whole panel when symbol is empty.
func (r *Repository) GetVolumeSummaries(symbol string) ([]VolumeSummary, error) {
	query := `
		SELECT symbol, year, mean_rolling_volume, max_rolling_volume, observations
		FROM volume_summaries
	`
	var args []interface{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY symbol ASC, year ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query volume summaries: %w", err)
	}
	defer rows.Close()

	var summaries []VolumeSummary
	for rows.Next() {
		var s VolumeSummary
		var mean, max sql.NullFloat64

		if err := rows.Scan(&s.Symbol, &s.Year, &mean, &max, &s.Observations); err != nil {
			return nil, fmt.Errorf("failed to scan volume summary: %w", err)
		}

		s.AvgVolume = floatPtrFromNull(mean)
		s.MaxVolume = floatPtrFromNull(max)

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volume summaries: %w", err)
	}

	return summaries, nil
}

// GetIndicators fetches one symbol's indicator rows in date order.
// limit 0 means all rows.
func (r *Repository) GetIndicators(symbol string, limit int) ([]IndicatorPoint, error) {
	query := `
		SELECT symbol, date, rsi_14, sma_20
		FROM indicators
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
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	var points []IndicatorPoint
	for rows.Next() {
		var pt IndicatorPoint
		var rsi, sma sql.NullFloat64

		if err := rows.Scan(&pt.Symbol, &pt.Date, &rsi, &sma); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}

		pt.RSI14 = floatPtrFromNull(rsi)
		pt.SMA20 = floatPtrFromNull(sma)

		points = append(points, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicators: %w", err)
	}

	return points, nil
}

func deleteSymbolTx(tx *sql.Tx, symbol string) error {
	tables := []string{
		"derived_prices", monthlyBarsTable, yearlyBarsTable,
		"rolling_stats", "volatility_summaries", "volume_summaries", "indicators",
	}
	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE symbol = ?`, table), symbol); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", table, symbol, err)
		}
	}
	return nil
}

func insertDerivedTx(tx *sql.Tx, points []DerivedPricePoint) error {
	if len(points) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO derived_prices
		(symbol, date, open, high, low, close, adjusted_close, volume,
		 previous_adjusted, daily_return, daily_range)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare derived insert: %w", err)
	}
	defer stmt.Close()

	for i := range points {
		d := &points[i]
		_, err = stmt.Exec(
			d.Symbol, d.Date,
			nullFloat(d.Open), nullFloat(d.High), nullFloat(d.Low), nullFloat(d.Close),
			d.AdjustedClose, nullInt(d.Volume),
			nullFloat(d.PreviousAdjusted), nullFloat(d.DailyReturn), nullFloat(d.DailyRange),
		)
		if err != nil {
			return fmt.Errorf("failed to insert derived price for %s %s: %w", d.Symbol, d.Date, err)
		}
	}

	return nil
}

func insertBarsTx(tx *sql.Tx, table string, bars []PeriodBar) error {
	if len(bars) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s
		(symbol, period, open, high, low, close, volume,
		 previous_close, period_return, trading_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := range bars {
		b := &bars[i]
		_, err = stmt.Exec(
			b.Symbol, b.Period,
			nullFloat(b.Open), nullFloat(b.High), nullFloat(b.Low), nullFloat(b.Close),
			nullInt(b.Volume), nullFloat(b.PreviousClose), nullFloat(b.PeriodReturn),
			b.TradingDays,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bar for %s %s: %w", b.Symbol, b.Period, err)
		}
	}

	return nil
}

func insertRollingTx(tx *sql.Tx, stats []RollingStat) error {
	if len(stats) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO rolling_stats
		(symbol, date, alignment, rolling_volatility, rolling_volume)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rolling insert: %w", err)
	}
	defer stmt.Close()

	for i := range stats {
		rs := &stats[i]
		_, err = stmt.Exec(
			rs.Symbol, rs.Date, string(rs.Alignment),
			nullFloat(rs.RollingVolatility), nullFloat(rs.RollingVolume),
		)
		if err != nil {
			return fmt.Errorf("failed to insert rolling stat for %s %s: %w", rs.Symbol, rs.Date, err)
		}
	}

	return nil
}

func insertVolatilitySummariesTx(tx *sql.Tx, summaries []VolatilitySummary) error {
	if len(summaries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO volatility_summaries
		(symbol, year, mean_volatility, max_volatility, observations)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare volatility summary insert: %w", err)
	}
	defer stmt.Close()

	for i := range summaries {
		s := &summaries[i]
		_, err = stmt.Exec(s.Symbol, s.Year, nullFloat(s.AvgVolatility), nullFloat(s.MaxVolatility), s.Observations)
		if err != nil {
			return fmt.Errorf("failed to insert volatility summary for %s %s: %w", s.Symbol, s.Year, err)
		}
	}

	return nil
}

func insertVolumeSummariesTx(tx *sql.Tx, summaries []VolumeSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO volume_summaries
		(symbol, year, mean_rolling_volume, max_rolling_volume, observations)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare volume summary insert: %w", err)
	}
	defer stmt.Close()

	for i := range summaries {
		s := &summaries[i]
		_, err = stmt.Exec(s.Symbol, s.Year, nullFloat(s.AvgVolume), nullFloat(s.MaxVolume), s.Observations)
		if err != nil {
			return fmt.Errorf("failed to insert volume summary for %s %s: %w", s.Symbol, s.Year, err)
		}
	}

	return nil
}

func insertIndicatorsTx(tx *sql.Tx, points []IndicatorPoint) error {
	if len(points) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO indicators (symbol, date, rsi_14, sma_20)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare indicator insert: %w", err)
	}
	defer stmt.Close()

	for i := range points {
		pt := &points[i]
		_, err = stmt.Exec(pt.Symbol, pt.Date, nullFloat(pt.RSI14), nullFloat(pt.SMA20))
		if err != nil {
			return fmt.Errorf("failed to insert indicator for %s %s: %w", pt.Symbol, pt.Date, err)
		}
	}

	return nil
}

func floatPtrFromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
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
