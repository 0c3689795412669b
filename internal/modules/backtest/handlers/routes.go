package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtest", func(r chi.Router) {
		r.Post("/", h.HandleRun)     // Run a backtest synchronously
		r.Get("/", h.HandleList)     // List past runs
		r.Get("/{id}", h.HandleGet)  // Run detail with equity curve and trades
	})
}
