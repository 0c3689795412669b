package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth reports liveness plus whether score data has been ingested,
// so probes can tell an unseeded instance from a broken one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	months, err := s.scores.Months()
	if err != nil {
		status = "degraded"
	} else if len(months) == 0 {
		status = "no_data"
	}

	response := map[string]interface{}{
		"status":      status,
		"service":     "fundfolio",
		"data_months": len(months),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
