// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/config"
	"github.com/aristath/metron/internal/database"
)

// InitializeDatabases initializes all 3 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Log: log}

	// 1. panel.db - Imported price panel. The ledger profile trades write
	// speed for durability because this is the one store a recompute
	// cannot rebuild.
	panelDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "panel.db"),
		Profile: database.ProfileLedger,
		Name:    "panel",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize panel database: %w", err)
	}
	container.PanelDB = panelDB

	// 2. metrics.db - Derived metrics (returns, bars, rolling stats, correlations, runs)
	metricsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "metrics.db"),
		Profile: database.ProfileStandard,
		Name:    "metrics",
	})
	if err != nil {
		panelDB.Close()
		return nil, fmt.Errorf("failed to initialize metrics database: %w", err)
	}
	container.MetricsDB = metricsDB

	// 3. cache.db - Ephemeral calculation cache
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		panelDB.Close()
		metricsDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{panelDB, metricsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			panelDB.Close()
			metricsDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}

// Databases returns the named database map shared by the health check,
// backup and maintenance paths.
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"panel":   c.PanelDB,
		"metrics": c.MetricsDB,
		"cache":   c.CacheDB,
	}
}

// CloseDatabases closes every open database. Safe to call with a
// partially initialized container.
func (c *Container) CloseDatabases() {
	if c.PanelDB != nil {
		c.PanelDB.Close()
	}
	if c.MetricsDB != nil {
		c.MetricsDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
