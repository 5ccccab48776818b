package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/metrics", func(r chi.Router) {
		r.Get("/derived/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetDerived(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/monthly/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetMonthlyBars(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/yearly/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetYearlyBars(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/rolling/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetRollingStats(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/indicators/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetIndicators(w, r, chi.URLParam(r, "symbol"))
		})

		r.Get("/summaries/volatility", h.HandleGetVolatilitySummaries)
		r.Get("/summaries/volume", h.HandleGetVolumeSummaries)
	})
}
