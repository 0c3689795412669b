// Package handlers provides HTTP handlers for the data universe.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/modules/universe"
)

// Handler handles universe HTTP requests
type Handler struct {
	scores *universe.ScoreRepository
	log    zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(scores *universe.ScoreRepository, log zerolog.Logger) *Handler {
	return &Handler{
		scores: scores,
		log:    log.With().Str("handler", "universe").Logger(),
	}
}

// HandleGetMonths returns the months for which score data exists, in
// chronological order. Useful for choosing valid backtest ranges.
func (h *Handler) HandleGetMonths(w http.ResponseWriter, r *http.Request) {
	months, err := h.scores.Months()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := make([]map[string]int, 0, len(months))
	for _, m := range months {
		result = append(result, map[string]int{"year": m.Year, "month": m.Month})
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RegisterRoutes registers all universe routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/months", h.HandleGetMonths)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
