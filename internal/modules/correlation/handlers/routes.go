package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all correlation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/correlations", func(r chi.Router) {
		r.Get("/features", h.HandleGetFeatureMatrix)
		r.Get("/features/long", h.HandleGetFeatureMatrixLong)
		r.Get("/symbols", h.HandleGetSymbolMatrix)
	})
}
