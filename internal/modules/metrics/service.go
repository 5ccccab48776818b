package metrics

import (
	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/utils"
)

// Service ties the calculator to the metrics repository. The pipeline
// drives Compute/Store per symbol; the HTTP handlers only read.
type Service struct {
	calc *Calculator
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new metrics service
func NewService(calc *Calculator, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		calc: calc,
		repo: repo,
		log:  log.With().Str("service", "metrics").Logger(),
	}
}

// Window returns the rolling-window width the calculator runs with
func (s *Service) Window() int {
	return s.calc.Window()
}

// Compute runs every per-symbol derivation over the given panel rows.
// It never touches storage and never fails: bad rows are excluded and
// counted, short series just produce null-heavy output.
func (s *Service) Compute(symbol string, points []panel.PricePoint) SymbolMetrics {
	defer utils.OperationTimer("compute_symbol_metrics", s.log)()

	derived, excluded := s.calc.DeriveSeries(symbol, points)
	trailing := s.calc.RollingStats(symbol, derived, AlignTrailing)
	centered := s.calc.RollingStats(symbol, derived, AlignCentered)

	return SymbolMetrics{
		Symbol:              symbol,
		Derived:             derived,
		Monthly:             s.calc.MonthlyBars(symbol, derived),
		Yearly:              s.calc.YearlyBars(symbol, derived),
		Trailing:            trailing,
		Centered:            centered,
		VolatilitySummaries: s.calc.VolatilitySummaries(symbol, centered),
		VolumeSummaries:     s.calc.VolumeSummaries(symbol, centered),
		Indicators:          s.calc.Indicators(symbol, derived),
		ExcludedRows:        excluded,
	}
}

// Store persists a computed bundle, replacing the symbol's previous rows
func (s *Service) Store(m SymbolMetrics) error {
	return s.repo.StoreAll(m)
}

// ComputeAndStore runs Compute and persists the result
func (s *Service) ComputeAndStore(symbol string, points []panel.PricePoint) (SymbolMetrics, error) {
	m := s.Compute(symbol, points)
	if err := s.Store(m); err != nil {
		return SymbolMetrics{}, err
	}
	return m, nil
}

// PurgeSymbol drops every stored row for a symbol
func (s *Service) PurgeSymbol(symbol string) error {
	return s.repo.PurgeSymbol(symbol)
}

// StoredSymbols lists the symbols that currently have derived rows
func (s *Service) StoredSymbols() ([]string, error) {
	return s.repo.ListSymbols()
}

// Derived returns one symbol's stored derived rows
func (s *Service) Derived(symbol string, limit int) ([]DerivedPricePoint, error) {
	return s.repo.GetDerived(symbol, limit)
}

// MonthlyBars returns one symbol's stored monthly bars
func (s *Service) MonthlyBars(symbol string) ([]PeriodBar, error) {
	return s.repo.GetMonthlyBars(symbol)
}

// YearlyBars returns one symbol's stored yearly bars
func (s *Service) YearlyBars(symbol string) ([]PeriodBar, error) {
	return s.repo.GetYearlyBars(symbol)
}

// RollingStats returns one symbol's stored rolling stats for an alignment
func (s *Service) RollingStats(symbol string, align Alignment) ([]RollingStat, error) {
	return s.repo.GetRollingStats(symbol, align)
}

// VolatilitySummaries returns stored yearly volatility summaries
func (s *Service) VolatilitySummaries(symbol string) ([]VolatilitySummary, error) {
	return s.repo.GetVolatilitySummaries(symbol)
}

// VolumeSummaries returns stored yearly volume summaries
func (s *Service) VolumeSummaries(symbol string) ([]VolumeSummary, error) {
	return s.repo.GetVolumeSummaries(symbol)
}

// Indicators returns one symbol's stored indicator rows
func (s *Service) Indicators(symbol string, limit int) ([]IndicatorPoint, error) {
	return s.repo.GetIndicators(symbol, limit)
}
