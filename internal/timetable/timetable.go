// Package timetable is the In-Memory Timetable: the boot-time
// snapshot of the active service day's stop-times plus a precomputed
// pedestrian-transfer graph, that the RAPTOR Engine runs its rounds over.
// Once built it is never mutated; multiple queries read it concurrently
// without locks.
package timetable

import (
	"context"
	"sort"
	"time"

	"github.com/atanasr/transit-raptor/internal/geo"
	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// MaxWalkTransferM is the maximum geodesic distance between two stops for
// a transfer edge to exist.
const MaxWalkTransferM = 500.0

// WalkingSpeedMPS is the constant pedestrian speed used to turn distance
// into seconds for transfer edges.
const WalkingSpeedMPS = 1.4

// serviceDayRolloverHour is the wall-clock hour before which "today's
// service day" is still considered yesterday's, so late-night trips
// remain routable.
const serviceDayRolloverHour = 4
const serviceDayRolloverMinute = 20

// boundingBoxDegrees is the pre-filter applied before the (comparatively
// expensive) haversine check when building the transfer graph; it bounds
// construction to O(n*k) rather than O(n^2) in dense deployments.
const boundingBoxDegrees = 0.01

// Stop is the timetable's copy of a static stop.
type Stop struct {
	StopID string
	Name   string
	Lat    float64
	Lon    float64
}

// Trip is the timetable's copy of a static trip.
type Trip struct {
	TripID      string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int
}

// StopTime is one (trip, stop) row from the active realistic (or
// scheduled, as fallback) table.
type StopTime struct {
	StopSequence int
	StopID       string
	ArrivalSec   int
	DepartureSec int
}

// TransferEdge is one directed half of a symmetric pedestrian-transfer
// edge between two stops.
type TransferEdge struct {
	ToStopID  string
	DurationS int
	DistanceM float64
}

// Timetable is the full immutable in-memory snapshot.
type Timetable struct {
	Stops           map[string]Stop
	Trips           map[string]Trip
	StopTimesByTrip map[string][]StopTime
	RoutesByStop    map[string]map[string]bool
	Transfers       map[string][]TransferEdge
	ServiceDate     string // YYYYMMDD, the active service date this snapshot was built for
}

// Source is the slice of the Schedule Store the Timetable loads from.
type Source interface {
	AllStops(ctx context.Context) ([]gtfs.Stop, error)
	AllTrips(ctx context.Context) ([]gtfs.Trip, error)
	StopTimesActiveOn(ctx context.Context, date string) ([]gtfs.StopTime, error)
}

// ActiveServiceDate returns the service date (YYYYMMDD) that should be
// considered "today" for routing purposes, applying the 04:20 rollover
// rule: before that wall-clock time, yesterday's service day is
// still active.
func ActiveServiceDate(now time.Time) string {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), serviceDayRolloverHour, serviceDayRolloverMinute, 0, 0, now.Location())
	if now.Before(cutoff) {
		return now.AddDate(0, 0, -1).Format("20060102")
	}
	return now.Format("20060102")
}

// Load builds a fresh Timetable for the given service date from the
// Schedule Store.
func Load(ctx context.Context, src Source, serviceDate string) (*Timetable, error) {
	stops, err := src.AllStops(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := src.AllTrips(ctx)
	if err != nil {
		return nil, err
	}
	stopTimes, err := src.StopTimesActiveOn(ctx, serviceDate)
	if err != nil {
		return nil, err
	}

	tt := &Timetable{
		Stops:           make(map[string]Stop, len(stops)),
		Trips:           make(map[string]Trip, len(trips)),
		StopTimesByTrip: make(map[string][]StopTime),
		RoutesByStop:    make(map[string]map[string]bool),
		Transfers:       make(map[string][]TransferEdge),
		ServiceDate:     serviceDate,
	}

	for _, s := range stops {
		if !geo.ValidCoordinate(s.StopLat, s.StopLon) {
			continue
		}
		tt.Stops[s.StopID] = Stop{StopID: s.StopID, Name: s.StopName, Lat: s.StopLat, Lon: s.StopLon}
	}
	for _, t := range trips {
		tt.Trips[t.TripID] = Trip{TripID: t.TripID, RouteID: t.RouteID, ServiceID: t.ServiceID, Headsign: t.TripHeadsign, DirectionID: t.DirectionID}
	}

	byTrip := make(map[string][]gtfs.StopTime)
	for _, st := range stopTimes {
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}
	for tripID, rows := range byTrip {
		trip, ok := tt.Trips[tripID]
		if !ok {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].StopSequence < rows[j].StopSequence })

		converted := make([]StopTime, 0, len(rows))
		for _, r := range rows {
			if _, ok := tt.Stops[r.StopID]; !ok {
				continue
			}
			arr, aerr := parseHMS(r.ArrivalTime)
			dep, derr := parseHMS(r.DepartureTime)
			if aerr != nil || derr != nil {
				continue
			}
			converted = append(converted, StopTime{StopSequence: r.StopSequence, StopID: r.StopID, ArrivalSec: arr, DepartureSec: dep})

			if tt.RoutesByStop[r.StopID] == nil {
				tt.RoutesByStop[r.StopID] = make(map[string]bool)
			}
			tt.RoutesByStop[r.StopID][trip.RouteID] = true
		}
		if len(converted) > 0 {
			tt.StopTimesByTrip[tripID] = converted
		}
	}

	tt.buildTransferGraph()
	return tt, nil
}

// buildTransferGraph constructs the symmetric pedestrian-transfer graph:
// for every unordered pair of stops within a cheap lat/lon bounding box
// AND within MaxWalkTransferM by haversine distance, a bidirectional edge
// with duration = distance / WalkingSpeedMPS.
func (tt *Timetable) buildTransferGraph() {
	ids := make([]string, 0, len(tt.Stops))
	for id := range tt.Stops {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i := 0; i < len(ids); i++ {
		a := tt.Stops[ids[i]]
		for j := i + 1; j < len(ids); j++ {
			b := tt.Stops[ids[j]]
			if abs(a.Lat-b.Lat) > boundingBoxDegrees || abs(a.Lon-b.Lon) > boundingBoxDegrees {
				continue
			}
			dist := geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
			if dist > MaxWalkTransferM {
				continue
			}
			duration := int(dist / WalkingSpeedMPS)
			tt.Transfers[a.StopID] = append(tt.Transfers[a.StopID], TransferEdge{ToStopID: b.StopID, DurationS: duration, DistanceM: dist})
			tt.Transfers[b.StopID] = append(tt.Transfers[b.StopID], TransferEdge{ToStopID: a.StopID, DurationS: duration, DistanceM: dist})
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
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

func errMalformed(s string) error { return malformedTimeError(s) }

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
