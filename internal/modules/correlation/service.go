package correlation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/metrics"
)

// Service computes and serves the two correlation matrices.
type Service struct {
	engine   *Engine
	repo     *Repository
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewService creates a new correlation service
func NewService(engine *Engine, repo *Repository, eventMgr *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		engine:   engine,
		repo:     repo,
		eventMgr: eventMgr,
		log:      log.With().Str("service", "correlation").Logger(),
	}
}

// ComputeFeatureMatrix correlates pooled feature rows, stores the result
// and announces it.
func (s *Service) ComputeFeatureMatrix(rows []FeatureRow) (*Matrix, error) {
	m := s.engine.FeatureMatrix(rows)
	if err := s.store(MatrixFeatures, m); err != nil {
		return nil, err
	}
	return m, nil
}

// StoreFeatureMatrix persists an already-computed feature matrix, e.g.
// one served out of the calculation cache, and announces it like a
// fresh compute.
func (s *Service) StoreFeatureMatrix(m *Matrix) error {
	return s.store(MatrixFeatures, m)
}

// ComputeSymbolMatrix correlates symbol daily return series, stores the
// result and announces it.
func (s *Service) ComputeSymbolMatrix(derivedBySymbol map[string][]metrics.DerivedPricePoint) (*Matrix, error) {
	m := s.engine.SymbolMatrix(derivedBySymbol)
	if err := s.store(MatrixSymbols, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) store(name string, m *Matrix) error {
	if err := s.repo.StoreMatrix(name, m); err != nil {
		return fmt.Errorf("failed to store %s matrix: %w", name, err)
	}

	s.eventMgr.EmitTyped(events.CorrelationUpdated, "correlation", &events.CorrelationUpdatedData{
		Matrix:       name,
		Size:         len(m.Keys),
		Observations: m.Observations,
	})

	s.log.Info().
		Str("matrix", name).
		Int("keys", len(m.Keys)).
		Int("observations", m.Observations).
		Msg("Computed correlation matrix")

	return nil
}

// FeatureMatrix returns the stored feature matrix, or nil if it has not
// been computed yet.
func (s *Service) FeatureMatrix() (*Matrix, error) {
	return s.repo.GetMatrix(MatrixFeatures)
}

// SymbolMatrix returns the stored symbol matrix, or nil if it has not
// been computed yet.
func (s *Service) SymbolMatrix() (*Matrix, error) {
	return s.repo.GetMatrix(MatrixSymbols)
}
