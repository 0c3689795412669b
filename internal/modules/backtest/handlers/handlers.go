// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/backtest"
)

// Handler handles backtest HTTP requests
type Handler struct {
	service      *backtest.Service
	results      *backtest.ResultsRepository
	defaultStart time.Time
	defaultEnd   time.Time
	log          zerolog.Logger
}

// NewHandler creates a new backtest handler. defaultStart/defaultEnd are
// used when a run request omits its date range.
func NewHandler(
	service *backtest.Service,
	results *backtest.ResultsRepository,
	defaultStart, defaultEnd time.Time,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:      service,
		results:      results,
		defaultStart: defaultStart,
		defaultEnd:   defaultEnd,
		log:          log.With().Str("handler", "backtest").Logger(),
	}
}

type runRequest struct {
	Params    *domain.Parameters `json:"params"`
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	Label     string             `json:"label"`
}

// HandleRun executes a backtest synchronously and returns the full result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := domain.DefaultParameters()
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start, end, err := h.dateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.service.Run(params, start, end, req.Label)
	if err != nil {
		if domain.IsInvalidParameters(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Backtest run failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleList returns all persisted run summaries, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.results.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []backtest.RunSummary{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// HandleGet returns one run with its equity curve and trade log.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := h.results.Get(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	curve, err := h.results.GetEquityCurve(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	trades, err := h.results.GetTrades(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":          summary,
		"equity_curve": curve,
		"trades":       trades,
	})
}

func (h *Handler) dateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, end := h.defaultStart, h.defaultEnd
	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
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
