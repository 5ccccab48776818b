// Package handlers provides HTTP handlers for correlation matrices.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/correlation"
)

// Handler handles correlation HTTP requests
type Handler struct {
	service *correlation.Service
	log     zerolog.Logger
}

// NewHandler creates a new correlation handler
func NewHandler(service *correlation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "correlation").Logger(),
	}
}

// HandleGetFeatureMatrix handles GET /api/correlations/features
func (h *Handler) HandleGetFeatureMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FeatureMatrix()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load feature matrix")
		http.Error(w, "Failed to load feature matrix", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "Matrix not computed yet", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"matrix":   m,
		"features": m.Keys,
	})
}

// HandleGetFeatureMatrixLong handles GET /api/correlations/features/long.
// Long form suits spreadsheet export and cell-level lookups better than
// the nested matrix shape.
func (h *Handler) HandleGetFeatureMatrixLong(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FeatureMatrix()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load feature matrix")
		http.Error(w, "Failed to load feature matrix", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "Matrix not computed yet", http.StatusNotFound)
		return
	}

	cells := m.LongForm()
	h.writeData(w, map[string]interface{}{
		"cells":        cells,
		"count":        len(cells),
		"observations": m.Observations,
		"computed_at":  m.ComputedAt,
	})
}

// HandleGetSymbolMatrix handles GET /api/correlations/symbols
func (h *Handler) HandleGetSymbolMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.SymbolMatrix()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load symbol matrix")
		http.Error(w, "Failed to load symbol matrix", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "Matrix not computed yet", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"matrix":  m,
		"symbols": m.Keys,
		"cells":   m.LongForm(),
	})
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
