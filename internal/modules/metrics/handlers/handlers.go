// Package handlers provides HTTP handlers for the derived metrics tables.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/utils"
)

// Handler handles metrics HTTP requests
type Handler struct {
	service *metrics.Service
	log     zerolog.Logger
}

// NewHandler creates a new metrics handler
func NewHandler(service *metrics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "metrics").Logger(),
	}
}

// HandleGetDerived handles GET /api/metrics/derived/{symbol}
func (h *Handler) HandleGetDerived(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)
	limit := parseLimit(r, 0)

	points, err := h.service.Derived(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get derived prices")
		http.Error(w, "Failed to get derived prices", http.StatusInternalServerError)
		return
	}
	if len(points) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"prices": points,
		"count":  len(points),
	})
}

// HandleGetMonthlyBars handles GET /api/metrics/monthly/{symbol}
func (h *Handler) HandleGetMonthlyBars(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	bars, err := h.service.MonthlyBars(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get monthly bars")
		http.Error(w, "Failed to get monthly bars", http.StatusInternalServerError)
		return
	}
	if len(bars) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// HandleGetYearlyBars handles GET /api/metrics/yearly/{symbol}
func (h *Handler) HandleGetYearlyBars(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	bars, err := h.service.YearlyBars(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get yearly bars")
		http.Error(w, "Failed to get yearly bars", http.StatusInternalServerError)
		return
	}
	if len(bars) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// HandleGetRollingStats handles GET /api/metrics/rolling/{symbol}.
// The alignment query parameter selects trailing or centered stats and
// defaults to trailing.
func (h *Handler) HandleGetRollingStats(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	align := metrics.AlignTrailing
	if alignStr := r.URL.Query().Get("alignment"); alignStr != "" {
		parsed, ok := metrics.ParseAlignment(alignStr)
		if !ok {
			http.Error(w, "Invalid alignment (must be trailing or centered)", http.StatusBadRequest)
			return
		}
		align = parsed
	}

	stats, err := h.service.RollingStats(symbol, align)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get rolling stats")
		http.Error(w, "Failed to get rolling stats", http.StatusInternalServerError)
		return
	}
	if len(stats) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol":    symbol,
		"alignment": align,
		"window":    h.service.Window(),
		"stats":     stats,
		"count":     len(stats),
	})
}

// HandleGetVolatilitySummaries handles GET /api/metrics/summaries/volatility
func (h *Handler) HandleGetVolatilitySummaries(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeSymbol(r.URL.Query().Get("symbol"))

	summaries, err := h.service.VolatilitySummaries(symbol)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get volatility summaries")
		http.Error(w, "Failed to get volatility summaries", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// HandleGetVolumeSummaries handles GET /api/metrics/summaries/volume
func (h *Handler) HandleGetVolumeSummaries(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeSymbol(r.URL.Query().Get("symbol"))

	summaries, err := h.service.VolumeSummaries(symbol)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get volume summaries")
		http.Error(w, "Failed to get volume summaries", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// HandleGetIndicators handles GET /api/metrics/indicators/{symbol}
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = utils.NormalizeSymbol(symbol)
	limit := parseLimit(r, 0)

	points, err := h.service.Indicators(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get indicators")
		http.Error(w, "Failed to get indicators", http.StatusInternalServerError)
		return
	}
	if len(points) == 0 {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol":     symbol,
		"indicators": points,
		"count":      len(points),
	})
}

func parseLimit(r *http.Request, fallback int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
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
