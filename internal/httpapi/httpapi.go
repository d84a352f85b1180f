// Package httpapi is the HTTP surface: a thin chi router binding the
// query orchestrator, the stop arrivals service, and the delay metrics
// tracker into external routes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/atanasr/transit-raptor/internal/arrivalsvc"
	"github.com/atanasr/transit-raptor/internal/delaymetrics"
	"github.com/atanasr/transit-raptor/internal/orchestrator"
	"github.com/atanasr/transit-raptor/internal/timetable"
)

// ErrorResponse is the JSON error shape used across every handler.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Clock abstracts "now" and "today's active service date" so handlers
// stay testable.
type Clock interface {
	Now() time.Time
	ActiveServiceDate(now time.Time) string
}

// SystemClock is the production Clock, backed by the wall clock and the
// In-Memory Timetable's service-day rollover rule.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// ActiveServiceDate delegates to the Timetable's rollover rule so the
// HTTP surface and the Timetable agree on "today".
func (SystemClock) ActiveServiceDate(now time.Time) string { return timetable.ActiveServiceDate(now) }

// Server bundles the dependencies every handler needs.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	arrivals     *arrivalsvc.Service
	tracker      *delaymetrics.Tracker
	clock        Clock
}

// NewServer builds a Server over its component services.
func NewServer(orch *orchestrator.Orchestrator, arrivals *arrivalsvc.Service, tracker *delaymetrics.Tracker, clock Clock) *Server {
	return &Server{orchestrator: orch, arrivals: arrivals, tracker: tracker, clock: clock}
}

// Router builds the full chi router. An empty allowedOrigins list
// falls back to permissive CORS for local development.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/navigate", s.handleNavigate)
	r.Get("/api/nearby-stops", s.handleNearbyStops)
	r.Get("/api/stops/{stopId}/arrivals", s.handleStopArrivals)
	r.Get("/api/health/routes", s.handleRouteHealth)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
