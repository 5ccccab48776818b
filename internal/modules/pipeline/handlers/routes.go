package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all pipeline routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pipeline", func(r chi.Router) {
		r.Post("/run", h.HandleTriggerRun)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetRun(w, r, chi.URLParam(r, "id"))
		})
	})
}
