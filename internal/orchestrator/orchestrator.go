// Package orchestrator is the Query Orchestrator: a thin
// composition over the RAPTOR Engine that parses the query, invokes the
// Engine, formats legs for the external caller, substitutes rider-facing
// route ids, and attaches a straight-line sanity metric.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/atanasr/transit-raptor/internal/geo"
	"github.com/atanasr/transit-raptor/internal/raptor"
	"github.com/atanasr/transit-raptor/internal/routeid"
	"github.com/atanasr/transit-raptor/internal/timetable"
)

// Request is the external navigation request.
type Request struct {
	OriginLat, OriginLon float64
	DestLat, DestLon     float64
	DepartureTime        string // "HH:MM:SS", empty means "now"
	Debug                bool
}

// WalkLeg is the external shape of a walking segment.
type WalkLeg struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	DistanceM   float64 `json:"distanceMeters"`
	DurationSec int     `json:"durationSeconds"`
}

// TransitLeg is the external shape of a transit ride segment.
type TransitLeg struct {
	RouteID       string `json:"routeId"`
	TripID        string `json:"tripId"`
	FromStopID    string `json:"fromStopId"`
	FromStopName  string `json:"fromStopName"`
	ToStopID      string `json:"toStopId"`
	ToStopName    string `json:"toStopName"`
	DepartureTime string `json:"departureTime"`
	ArrivalTime   string `json:"arrivalTime"`
}

// Route is one itinerary in the external response shape.
type Route struct {
	TotalTimeSec     int           `json:"totalTimeSeconds"`
	TotalTimeMinutes int           `json:"totalTimeMinutes"`
	Transfers        int           `json:"transfers"`
	Legs             []interface{} `json:"legs"`
}

// Response is the full external navigation response.
type Response struct {
	Origin        Point   `json:"origin"`
	Destination   Point   `json:"destination"`
	StraightLineM float64 `json:"straightLineDistanceMeters"`
	DepartureTime string  `json:"departureTime"`
	Routes        []Route `json:"routes"`
}

// Point is a lat/lon pair in the external response.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orchestrator composes a RAPTOR Engine and a Route Identity Translator.
type Orchestrator struct {
	engine     *raptor.Engine
	tt         *timetable.Timetable
	translator *routeid.Translator
}

// New builds an Orchestrator over an Engine and its Timetable, with a
// Route Identity Translator for external route-id substitution.
func New(engine *raptor.Engine, tt *timetable.Timetable, translator *routeid.Translator) *Orchestrator {
	return &Orchestrator{engine: engine, tt: tt, translator: translator}
}

// Navigate runs one end-to-end journey query and formats its result.
func (o *Orchestrator) Navigate(ctx context.Context, req Request, now time.Time) (*Response, error) {
	departureSec, err := parseDepartureOrNow(req.DepartureTime, now)
	if err != nil {
		return nil, fmt.Errorf("invalid departure time %q: %w", req.DepartureTime, err)
	}

	itineraries := o.engine.Route(raptor.Query{
		OriginLat: req.OriginLat, OriginLon: req.OriginLon,
		DestLat: req.DestLat, DestLon: req.DestLon,
		DepartureSec: departureSec,
	})

	routes := make([]Route, 0, len(itineraries))
	for _, it := range itineraries {
		routes = append(routes, o.formatItinerary(ctx, it))
	}

	return &Response{
		Origin:        Point{Lat: req.OriginLat, Lon: req.OriginLon},
		Destination:   Point{Lat: req.DestLat, Lon: req.DestLon},
		StraightLineM: geo.Haversine(req.OriginLat, req.OriginLon, req.DestLat, req.DestLon),
		DepartureTime: formatHMS(departureSec),
		Routes:        routes,
	}, nil
}

// NearbyStops runs the nearby-stops search, defaulting maxDistance to 500m.
func (o *Orchestrator) NearbyStops(lat, lon, maxDistance float64) []raptor.NearbyStop {
	if maxDistance <= 0 {
		maxDistance = raptor.MaxWalkingDistanceM
	}
	return raptor.NearbyStops(o.tt, lat, lon, maxDistance)
}

func (o *Orchestrator) formatItinerary(ctx context.Context, it raptor.Itinerary) Route {
	legs := make([]interface{}, 0, len(it.Legs))
	for _, l := range it.Legs {
		if l.IsTransit {
			externalRouteID, ok := o.translator.Translate(ctx, l.RouteID)
			if !ok {
				externalRouteID = l.RouteID
			}
			legs = append(legs, TransitLeg{
				RouteID:       externalRouteID,
				TripID:        l.TripID,
				FromStopID:    l.FromStopID,
				FromStopName:  l.FromStopName,
				ToStopID:      l.ToStopID,
				ToStopName:    l.ToStopName,
				DepartureTime: formatHMS(l.DepartureSec),
				ArrivalTime:   formatHMS(l.ArrivalSec),
			})
		} else {
			from := l.FromStopName
			if l.FromStopID == "" {
				from = "origin"
			}
			to := l.ToStopName
			if l.ToStopID == "" {
				to = "destination"
			}
			legs = append(legs, WalkLeg{
				From:        from,
				To:          to,
				DistanceM:   l.DistanceM,
				DurationSec: l.DurationSec,
			})
		}
	}

	return Route{
		TotalTimeSec:     it.TotalTimeSec,
		TotalTimeMinutes: it.TotalTimeSec / 60,
		Transfers:        it.Transfers,
		Legs:             legs,
	}
}

func parseDepartureOrNow(s string, now time.Time) (int, error) {
	if s == "" {
		return now.Hour()*3600 + now.Minute()*60 + now.Second(), nil
	}
	return parseHMS(s)
}

func parseHMS(s string) (int, error) {
	if len(s) < 7 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, err
	}
	return h*3600 + m*60 + sec, nil
}

func formatHMS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
