// Package handlers provides HTTP handlers for panel operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/utils"
)

// Handler handles panel HTTP requests
type Handler struct {
	service *panel.Service
	log     zerolog.Logger
}

// NewHandler creates a new panel handler
func NewHandler(service *panel.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "panel").Logger(),
	}
}

// HandleGetSymbols handles GET /api/panel/symbols
func (h *Handler) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.service.Symbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get symbols")
		http.Error(w, "Failed to get symbols", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": symbols,
			"count":   len(symbols),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetPrices handles GET /api/panel/prices/{symbol}
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	limit := 0 // default: full history
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	prices, err := h.service.Prices(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get prices")
		http.Error(w, "Failed to get prices", http.StatusInternalServerError)
		return
	}
	if len(prices) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDeleteSymbol handles DELETE /api/panel/prices/{symbol}
func (h *Handler) HandleDeleteSymbol(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	removed, err := h.service.DeleteSymbol(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to delete symbol")
		http.Error(w, "Failed to delete symbol", http.StatusInternalServerError)
		return
	}
	if removed == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"rows":   removed,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetImports handles GET /api/panel/imports
func (h *Handler) HandleGetImports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	imports, err := h.service.Imports(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get imports")
		http.Error(w, "Failed to get imports", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"imports": imports,
			"count":   len(imports),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleImportJSON handles POST /api/panel/import
func (h *Handler) HandleImportJSON(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ImportJSON(r.Body)
	h.respondImport(w, result, err)
}

// HandleImportCSV handles POST /api/panel/import/csv
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ImportCSV(r.Body)
	h.respondImport(w, result, err)
}

func (h *Handler) respondImport(w http.ResponseWriter, result *panel.ImportResult, err error) {
	if err != nil {
		var importErr *panel.ImportError
		if errors.As(err, &importErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": importErr.Error(),
				"metadata": map[string]interface{}{
					"timestamp": time.Now().Format(time.RFC3339),
				},
			})
			return
		}

		h.log.Error().Err(err).Msg("Import failed")
		http.Error(w, "Import failed", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": result,
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
