package httpapi

import (
	"net/http"
	"strconv"

	"github.com/atanasr/transit-raptor/internal/orchestrator"
)

// handleNavigate handles GET /api/navigate: origin/destination
// coordinates and an optional departure time, returning a ranked set
// of itineraries.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	originLat, err1 := strconv.ParseFloat(q.Get("originLat"), 64)
	originLon, err2 := strconv.ParseFloat(q.Get("originLon"), 64)
	destLat, err3 := strconv.ParseFloat(q.Get("destLat"), 64)
	destLon, err4 := strconv.ParseFloat(q.Get("destLon"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		writeError(w, http.StatusBadRequest, "originLat, originLon, destLat and destLon are required numeric query parameters", nil)
		return
	}

	req := orchestrator.Request{
		OriginLat:     originLat,
		OriginLon:     originLon,
		DestLat:       destLat,
		DestLon:       destLon,
		DepartureTime: q.Get("departureTime"),
	}

	now := s.clock.Now()
	resp, err := s.orchestrator.Navigate(r.Context(), req, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid navigation request", map[string]interface{}{"internal": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleNearbyStops handles GET /api/nearby-stops.
func (s *Server) handleNearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required numeric query parameters", nil)
		return
	}

	maxDistance := 0.0
	if raw := q.Get("maxDistance"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			maxDistance = parsed
		}
	}

	stops := s.orchestrator.NearbyStops(lat, lon, maxDistance)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stops": stops,
		"count": len(stops),
	})
}
