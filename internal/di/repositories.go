// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/modules/pipeline"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Panel repository (needs panelDB)
	container.PanelRepo = panel.NewRepository(
		container.PanelDB.Conn(),
		log,
	)

	// Metrics repository (needs metricsDB)
	container.MetricsRepo = metrics.NewRepository(
		container.MetricsDB.Conn(),
		log,
	)

	// Correlation repository (needs metricsDB, matrices live next to the series they summarize)
	container.CorrelationRepo = correlation.NewRepository(
		container.MetricsDB.Conn(),
		log,
	)

	// Pipeline run repository (needs metricsDB)
	container.PipelineRepo = pipeline.NewRepository(
		container.MetricsDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
