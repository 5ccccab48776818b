package panel

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/events"
)

// Service coordinates panel imports: parse, validate, store, announce.
type Service struct {
	repo      *Repository
	validator *Validator
	eventMgr  *events.Manager
	log       zerolog.Logger
}

// NewService creates a new panel service
func NewService(repo *Repository, validator *Validator, eventMgr *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		eventMgr:  eventMgr,
		log:       log.With().Str("service", "panel").Logger(),
	}
}

// ImportCSV parses and imports a CSV price file
func (s *Service) ImportCSV(r io.Reader) (*ImportResult, error) {
	points, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.importPoints("csv", points)
}

// ImportJSON parses and imports a JSON array of price rows
func (s *Service) ImportJSON(r io.Reader) (*ImportResult, error) {
	points, err := ParseJSON(r)
	if err != nil {
		return nil, err
	}
	return s.importPoints("json", points)
}

// importPoints runs structural validation and writes the batch.
// Rows with unusable adjusted closes are imported as-is; they are
// flagged when the derived series is computed, not here.
func (s *Service) importPoints(source string, points []PricePoint) (*ImportResult, error) {
	if err := s.validator.ValidateBatch(points); err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("Import rejected")
		return nil, err
	}

	var warnings []string
	symbols := make(map[string]struct{})
	for i := range points {
		warnings = append(warnings, s.validator.ConsistencyWarnings(&points[i])...)
		symbols[points[i].Symbol] = struct{}{}
	}

	if err := s.repo.UpsertPrices(points); err != nil {
		return nil, fmt.Errorf("failed to store import: %w", err)
	}

	if err := s.repo.RecordImport(source, len(symbols), len(points)); err != nil {
		// The prices are in; a failed audit row should not fail the import
		s.log.Error().Err(err).Msg("Failed to record import audit row")
	}

	s.eventMgr.EmitTyped(events.PanelUpdated, "panel", &events.PanelUpdatedData{
		Source:  source,
		Symbols: len(symbols),
		Rows:    len(points),
	})

	s.log.Info().
		Str("source", source).
		Int("symbols", len(symbols)).
		Int("rows", len(points)).
		Int("warnings", len(warnings)).
		Msg("Imported panel prices")

	return &ImportResult{
		Source:   source,
		Symbols:  len(symbols),
		Rows:     len(points),
		Warnings: warnings,
	}, nil
}

// Symbols returns coverage info for every symbol in the panel
func (s *Service) Symbols() ([]SymbolInfo, error) {
	return s.repo.GetSymbols()
}

// Prices returns one symbol's rows in date order
func (s *Service) Prices(symbol string, limit int) ([]PricePoint, error) {
	return s.repo.GetPrices(symbol, limit)
}

// Imports returns the recent import audit rows
func (s *Service) Imports(limit int) ([]ImportRecord, error) {
	return s.repo.GetImports(limit)
}

// DeleteSymbol removes one symbol's panel rows and reports how many
// rows went away
func (s *Service) DeleteSymbol(symbol string) (int64, error) {
	return s.repo.DeleteSymbol(symbol)
}

// Fingerprint returns the panel staleness key
func (s *Service) Fingerprint() (string, error) {
	return s.repo.Fingerprint()
}
