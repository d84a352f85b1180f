package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleStopArrivals handles GET /api/stops/{stopId}/arrivals, the one
// query path that reads the continuously-mutated caches rather than
// pure immutable structures.
func (s *Server) handleStopArrivals(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")
	if stopID == "" {
		writeError(w, http.StatusBadRequest, "stopId parameter is required", nil)
		return
	}

	now := s.clock.Now()
	serviceDate := s.clock.ActiveServiceDate(now)

	arrivals, err := s.arrivals.ArrivalsAtStop(r.Context(), stopID, now, serviceDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve stop arrivals", map[string]interface{}{"internal": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopId":   stopID,
		"arrivals": arrivals,
		"count":    len(arrivals),
	})
}
