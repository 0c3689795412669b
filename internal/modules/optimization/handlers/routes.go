package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimize", func(r chi.Router) {
		r.Post("/", h.HandleStart)  // Start a study asynchronously
		r.Get("/", h.HandleList)    // List studies
		r.Get("/{id}", h.HandleGet) // Study status with trial history
	})
}
