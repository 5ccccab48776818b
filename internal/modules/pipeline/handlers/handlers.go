// Package handlers provides HTTP handlers for pipeline runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/pipeline"
)

// Handler handles pipeline HTTP requests
type Handler struct {
	runner *pipeline.Runner
	repo   *pipeline.Repository
	log    zerolog.Logger
}

// NewHandler creates a new pipeline handler
func NewHandler(runner *pipeline.Runner, repo *pipeline.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		repo:   repo,
		log:    log.With().Str("handler", "pipeline").Logger(),
	}
}

// HandleTriggerRun handles POST /api/pipeline/run. The run executes in
// the background; the response carries the id to poll.
func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.runner.Start(context.Background())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			http.Error(w, "A pipeline run is already in progress", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Msg("Failed to start pipeline run")
		http.Error(w, "Failed to start pipeline run", http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("run_id", runID).Msg("Manual pipeline run triggered")
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id": runID,
			"status": "started",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListRuns handles GET /api/pipeline/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/pipeline/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.repo.GetRun(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{"run": run})
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
