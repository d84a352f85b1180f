// Package arrivalsvc answers "what is arriving at stop X, soon" by
// joining the schedule store's future stop-times against the arrival
// observer's latest-arrival and vehicle-position caches.
//
// The ghost-trip suppression policy here is heuristic and
// observation-dependent; treat its thresholds as provisional.
package arrivalsvc

import (
	"context"
	"sort"
	"time"

	"github.com/atanasr/transit-raptor/internal/gtfs"
	"github.com/atanasr/transit-raptor/internal/observer"
	"github.com/atanasr/transit-raptor/internal/routeid"
)

// RealtimeGrace is the window inside which an unconfirmed trip is
// suppressed as a presumed "ghost".
const RealtimeGrace = 7 * time.Minute

// Store is the slice of the Schedule Store this service reads from.
type Store interface {
	StopTimesForStopFrom(ctx context.Context, stopID string, fromSec int, date string) ([]gtfs.StopTimeAtStop, error)
	StopTimesForTrip(ctx context.Context, tripID string) ([]gtfs.StopTime, error)
}

// Arrival is one upcoming arrival at a stop, as returned externally.
type Arrival struct {
	TripID             string
	RouteID            string
	ExternalRouteID    string
	StopSequence       int
	ScheduledArrival   string
	ScheduledDeparture string
	SecondsUntil       int
	Certainty          string // "realtime" or "scheduled"
	VehicleLat         float64
	VehicleLon         float64
	HasVehicle         bool
	Relationship       string // "late", "early", "on time", or "" when no realistic time exists
	DiffMinutes        int

	// Live delay observed by the Arrival Observer this process lifetime,
	// classified separately from the historic Relationship above: the
	// historic annotation answers "does this trip usually run late", the
	// live one answers "is it late right now".
	LiveDelaySeconds int
	LiveRelationship string // "late", "early", "on time", or "" when no live observation exists
	HasLiveDelay     bool
}

// Service answers upcoming-arrivals queries for a stop.
type Service struct {
	store      Store
	translator *routeid.Translator
	latest     *observer.LatestArrivalCache
	vehicles   *observer.VehiclePositionCache
}

// New builds a Service over the Schedule Store and the Observer's caches.
func New(store Store, translator *routeid.Translator, latest *observer.LatestArrivalCache, vehicles *observer.VehiclePositionCache) *Service {
	return &Service{store: store, translator: translator, latest: latest, vehicles: vehicles}
}

// ArrivalsAtStop returns the filtered, annotated upcoming arrivals at a
// stop.
func (s *Service) ArrivalsAtStop(ctx context.Context, stopID string, now time.Time, serviceDate string) ([]Arrival, error) {
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	rows, err := s.store.StopTimesForStopFrom(ctx, stopID, nowSec, serviceDate)
	if err != nil {
		return nil, err
	}

	candidates := make([]Arrival, 0, len(rows))
	trusted := make([]bool, 0, len(rows))

	for _, row := range rows {
		secondsUntil := secondsUntilArrival(row.ArrivalSec, nowSec)

		a := Arrival{
			TripID:             row.TripID,
			RouteID:            row.RouteID,
			StopSequence:       row.StopSequence,
			ScheduledArrival:   row.ArrivalTime,
			ScheduledDeparture: row.DepartureTime,
			SecondsUntil:       secondsUntil,
			Certainty:          "scheduled",
		}
		if ext, ok := s.translator.Translate(ctx, row.RouteID); ok {
			a.ExternalRouteID = ext
		} else {
			a.ExternalRouteID = row.RouteID
		}

		pos, present, isTrusted := s.vehicles.Get(row.TripID, now)
		if present && isTrusted {
			a.Certainty = "realtime"
			a.HasVehicle = true
			a.VehicleLat = pos.Latitude
			a.VehicleLon = pos.Longitude
		}

		if live, ok := s.latest.Get(row.TripID, now); ok {
			a.LiveDelaySeconds = live.DelaySeconds
			a.LiveRelationship = classifyLiveDelay(live.DelaySeconds)
			a.HasLiveDelay = true
		}

		annotateRelationship(ctx, s.store, &a, row)

		candidates = append(candidates, a)
		trusted = append(trusted, present && isTrusted)
	}

	// Ghost-trip suppression: soon-arriving with no
	// trusted vehicle is dropped.
	var survivors []Arrival
	var survivorRouteID []string
	for i, a := range candidates {
		if a.SecondsUntil <= int(RealtimeGrace.Seconds()) && !trusted[i] {
			continue
		}
		survivors = append(survivors, a)
		survivorRouteID = append(survivorRouteID, a.RouteID)
	}

	return filterGhostsByRoute(survivors, survivorRouteID, s.vehicles, now), nil
}

// filterGhostsByRoute suppresses presumed ghost trips: sorted by scheduled
// arrival within a route, once a trusted vehicle has been seen for that
// route all later candidates are kept regardless of their own vehicle
// status; before that, only candidates with no vehicle-cache entry at
// all survive.
func filterGhostsByRoute(arrivals []Arrival, routeIDs []string, vehicles *observer.VehiclePositionCache, now time.Time) []Arrival {
	byRoute := make(map[string][]int)
	for i, r := range routeIDs {
		byRoute[r] = append(byRoute[r], i)
	}

	keep := make([]bool, len(arrivals))
	for _, indices := range byRoute {
		sort.Slice(indices, func(i, j int) bool {
			return arrivals[indices[i]].ScheduledArrival < arrivals[indices[j]].ScheduledArrival
		})

		sawTrusted := false
		for _, idx := range indices {
			a := arrivals[idx]
			if sawTrusted {
				keep[idx] = true
				continue
			}
			_, present, isTrusted := vehicles.Get(a.TripID, now)
			if isTrusted {
				sawTrusted = true
				keep[idx] = true
				continue
			}
			if !present {
				keep[idx] = true
			}
		}
	}

	out := make([]Arrival, 0, len(arrivals))
	for i, a := range arrivals {
		if keep[i] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledArrival < out[j].ScheduledArrival })
	return out
}

// secondsUntilArrival computes time-to-arrival handling HH>=24 rollover,
// mirroring the Observer's own hour-rollover handling.
func secondsUntilArrival(scheduledSec, nowSec int) int {
	extraDays := scheduledSec / 86400
	hourOfDay := scheduledSec % 86400
	return extraDays*86400 + hourOfDay - nowSec
}

// annotateRelationship computes the historic-latency annotation from the
// realistic stop-times table, when one exists for this (trip, stop,
// sequence). This is distinct from the live delay
// computed by the Observer.
func annotateRelationship(ctx context.Context, store Store, a *Arrival, row gtfs.StopTimeAtStop) {
	realistic, err := store.StopTimesForTrip(ctx, row.TripID)
	if err != nil {
		return
	}
	for _, rt := range realistic {
		if rt.StopSequence != row.StopSequence {
			continue
		}
		realSec, err1 := parseHMS(rt.ArrivalTime)
		schedSec, err2 := parseHMS(row.ArrivalTime)
		if err1 != nil || err2 != nil {
			return
		}
		diffMin := roundDiv(realSec-schedSec, 60)
		a.DiffMinutes = diffMin
		switch {
		case diffMin > 1:
			a.Relationship = "late"
		case diffMin < -1:
			a.Relationship = "early"
		default:
			a.Relationship = "on time"
		}
		return
	}
}

// classifyLiveDelay maps an observed delay to its status: more than 60s
// behind schedule is "late", more than 60s ahead is "early", anything
// within a minute is "on time".
func classifyLiveDelay(delaySeconds int) string {
	switch {
	case delaySeconds > 60:
		return "late"
	case delaySeconds < -60:
		return "early"
	default:
		return "on time"
	}
}

// roundDiv rounds a/b to the nearest integer, half away from zero.
func roundDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	if (a < 0) != (b < 0) {
		return -roundDiv(-a, b)
	}
	return (a + b/2) / b
}

func parseHMS(s string) (int, error) {
	if len(s) < 7 {
		return 0, errMalformed(s)
	}
	h, err := atoi2(s[0:2])
	if err != nil {
		return 0, err
	}
	m, err := atoi2(s[3:5])
	if err != nil {
		return 0, err
	}
	sec, err := atoi2(s[6:8])
	if err != nil {
		return 0, err
	}
	return h*3600 + m*60 + sec, nil
}

type malformedTimeError string

func (e malformedTimeError) Error() string { return "malformed time: " + string(e) }
func errMalformed(s string) error          { return malformedTimeError(s) }

func atoi2(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errMalformed(s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
