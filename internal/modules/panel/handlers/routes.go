package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all panel routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/panel", func(r chi.Router) {
		r.Get("/symbols", h.HandleGetSymbols)
		r.Get("/imports", h.HandleGetImports)
		r.Get("/prices/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			symbol := chi.URLParam(r, "symbol")
			h.HandleGetPrices(w, r, symbol)
		})
		r.Delete("/prices/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			symbol := chi.URLParam(r, "symbol")
			h.HandleDeleteSymbol(w, r, symbol)
		})

		r.Post("/import", h.HandleImportJSON)
		r.Post("/import/csv", h.HandleImportCSV)
	})
}
