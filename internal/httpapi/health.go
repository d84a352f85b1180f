package httpapi

import (
	"net/http"
	"time"
)

// RouteHealthResponse is the JSON response for GET /api/health/routes.
type RouteHealthResponse struct {
	Routes      []routeHealthEntry `json:"routes"`
	LastChecked time.Time          `json:"lastChecked"`
}

type routeHealthEntry struct {
	RouteID      string    `json:"routeId"`
	SampleCount  int       `json:"sampleCount"`
	MeanDelaySec float64   `json:"meanDelaySeconds"`
	StdDevSec    float64   `json:"stdDevSeconds"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// handleRouteHealth handles GET /api/health/routes: the diagnostic
// surface over the per-route Welford delay baselines. Purely
// operational visibility; it never influences routing or synthesis.
func (s *Server) handleRouteHealth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get route health", map[string]interface{}{"internal": err.Error()})
		return
	}

	entries := make([]routeHealthEntry, 0, len(snapshot))
	for _, b := range snapshot {
		entries = append(entries, routeHealthEntry{
			RouteID:      b.RouteID,
			SampleCount:  b.SampleCount,
			MeanDelaySec: b.MeanDelaySec,
			StdDevSec:    b.StdDevSec,
			UpdatedAt:    b.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, RouteHealthResponse{
		Routes:      entries,
		LastChecked: time.Now().UTC(),
	})
}
