// Package handlers provides HTTP handlers for optimization studies.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/modules/backtest"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
)

const defaultTrials = 100

// Handler handles optimization HTTP requests. Studies run asynchronously;
// progress and results are read back from the study repository.
type Handler struct {
	backtests    *backtest.Service
	studies      *optimization.StudyRepository
	workers      int
	defaultStart time.Time
	defaultEnd   time.Time
	log          zerolog.Logger
}

// NewHandler creates a new optimization handler.
func NewHandler(
	backtests *backtest.Service,
	studies *optimization.StudyRepository,
	workers int,
	defaultStart, defaultEnd time.Time,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		backtests:    backtests,
		studies:      studies,
		workers:      workers,
		defaultStart: defaultStart,
		defaultEnd:   defaultEnd,
		log:          log.With().Str("handler", "optimization").Logger(),
	}
}

type startRequest struct {
	NTrials   int    `json:"n_trials"`
	Seed      *int64 `json:"seed"`
	Sampler   string `json:"sampler"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// HandleStart launches an optimization study in the background and returns
// its id immediately.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nTrials := req.NTrials
	if nTrials <= 0 {
		nTrials = defaultTrials
	}
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	var sampler optimization.Sampler
	switch req.Sampler {
	case "", "tpe":
		sampler = optimization.NewTPESampler()
	case "random":
		sampler = optimization.NewRandomSampler()
	default:
		h.writeError(w, http.StatusBadRequest, "unknown sampler: "+req.Sampler)
		return
	}

	start, end := h.defaultStart, h.defaultEnd
	var err error
	if req.StartDate != "" {
		if start, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.EndDate != "" {
		if end, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Load data up front so a bad range fails the request, not the study.
	dataset, err := h.backtests.LoadDataset(start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	studyID := uuid.New().String()
	if err := h.studies.CreateStudy(studyID, seed, nTrials, sampler.Name(), start, end); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	driver := optimization.NewDriver(sampler, h.workers, h.log)
	driver.SetObserver(func(id string, trial optimization.Trial) {
		if err := h.studies.SaveTrial(id, trial); err != nil {
			h.log.Error().Err(err).Str("study", id).Int("trial", trial.Number).Msg("Failed to persist trial")
		}
	})

	go h.runStudy(driver, studyID, dataset, nTrials, seed)

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":       studyID,
		"n_trials": nTrials,
		"seed":     seed,
		"sampler":  sampler.Name(),
	})
}

// runStudy executes a study to completion and records its outcome.
func (h *Handler) runStudy(driver *optimization.Driver, studyID string, dataset *backtest.Dataset, nTrials int, seed int64) {
	result, err := driver.Optimize(
		context.Background(),
		studyID,
		optimization.DefaultSpace(),
		nTrials,
		seed,
		h.backtests.Evaluator(dataset),
	)
	if err != nil {
		h.log.Error().Err(err).Str("study", studyID).Msg("Study failed")
		if err := h.studies.FailStudy(studyID); err != nil {
			h.log.Error().Err(err).Str("study", studyID).Msg("Failed to mark study failed")
		}
		return
	}
	if err := h.studies.CompleteStudy(result); err != nil {
		h.log.Error().Err(err).Str("study", studyID).Msg("Failed to persist study result")
	}
}

// HandleList returns all studies, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	studies, err := h.studies.ListStudies()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if studies == nil {
		studies = []optimization.StudySummary{}
	}
	h.writeJSON(w, http.StatusOK, studies)
}

// HandleGet returns one study with its trial history.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	study, err := h.studies.GetStudy(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if study == nil {
		h.writeError(w, http.StatusNotFound, "study not found")
		return
	}

	trials, err := h.studies.GetTrials(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"study":  study,
		"trials": trials,
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
