// Package server provides the HTTP server and routing for Metron.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/metron/internal/version"
)

// handleHealth handles health check requests. Every database gets a
// quick ping so a wedged connection shows up here before it shows up
// as failing pipeline runs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	databases := make(map[string]string, len(s.databases))
	for name, db := range s.databases {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Health check ping failed")
			databases[name] = "unreachable"
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"version":   version.Version,
		"service":   "metron",
		"databases": databases,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
