package arrivalsvc

import (
	"context"
	"testing"
	"time"

	"github.com/atanasr/transit-raptor/internal/gtfs"
	"github.com/atanasr/transit-raptor/internal/observer"
	"github.com/atanasr/transit-raptor/internal/routeid"
)

func TestSecondsUntilArrival(t *testing.T) {
	cases := []struct {
		scheduledSec, nowSec, want int
	}{
		{hms(9, 5, 0), hms(9, 0, 0), 300},
		{hms(8, 59, 0), hms(9, 0, 0), -60},
		{hms(25, 0, 0), hms(23, 0, 0), 7200}, // after-midnight rollover trip
	}
	for _, c := range cases {
		if got := secondsUntilArrival(c.scheduledSec, c.nowSec); got != c.want {
			t.Errorf("secondsUntilArrival(%d,%d) = %d, want %d", c.scheduledSec, c.nowSec, got, c.want)
		}
	}
}

func hms(h, m, s int) int { return h*3600 + m*60 + s }

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{7, 2, 4},
		{-7, 2, -4},
		{5, 2, 3},
		{0, 2, 0},
	}
	for _, c := range cases {
		if got := roundDiv(c.a, c.b); got != c.want {
			t.Errorf("roundDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

type fakeStore struct {
	candidates []gtfs.StopTimeAtStop
	realistic  map[string][]gtfs.StopTime
}

func (f *fakeStore) StopTimesForStopFrom(ctx context.Context, stopID string, fromSec int, date string) ([]gtfs.StopTimeAtStop, error) {
	return f.candidates, nil
}
func (f *fakeStore) StopTimesForTrip(ctx context.Context, tripID string) ([]gtfs.StopTime, error) {
	return f.realistic[tripID], nil
}

type fakeRouteLookup struct{}

func (fakeRouteLookup) RouteByID(ctx context.Context, routeID string) (*gtfs.Route, error) {
	return nil, nil
}

func TestArrivalsAtStop_SuppressesUnconfirmedSoonTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		candidates: []gtfs.StopTimeAtStop{
			{TripID: "T1", RouteID: "R1", StopSequence: 1, ArrivalTime: "09:05:00", ArrivalSec: hms(9, 5, 0)},
		},
	}
	svc := New(store, routeid.NewTranslator(fakeRouteLookup{}), observer.NewLatestArrivalCache(), observer.NewVehiclePositionCache())

	got, err := svc.ArrivalsAtStop(context.Background(), "S1", now, "20260101")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected the unconfirmed soon-arriving trip to be suppressed, got %+v", got)
	}
}

func TestArrivalsAtStop_KeepsTrustedVehicleEvenWhenSoon(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		candidates: []gtfs.StopTimeAtStop{
			{TripID: "T1", RouteID: "R1", StopSequence: 1, ArrivalTime: "09:05:00", ArrivalSec: hms(9, 5, 0)},
		},
	}
	vehicles := observer.NewVehiclePositionCache()
	vehicles.Put("T1", observer.VehiclePosition{Latitude: 41.38, Longitude: 2.17, LastSeen: now})

	svc := New(store, routeid.NewTranslator(fakeRouteLookup{}), observer.NewLatestArrivalCache(), vehicles)
	got, err := svc.ArrivalsAtStop(context.Background(), "S1", now, "20260101")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the trusted-vehicle trip to survive, got %+v", got)
	}
	if got[0].Certainty != "realtime" {
		t.Errorf("expected certainty realtime, got %s", got[0].Certainty)
	}
}

func TestArrivalsAtStop_KeepsFarFutureTripWithoutVehicle(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		candidates: []gtfs.StopTimeAtStop{
			{TripID: "T1", RouteID: "R1", StopSequence: 1, ArrivalTime: "09:30:00", ArrivalSec: hms(9, 30, 0)},
		},
	}
	svc := New(store, routeid.NewTranslator(fakeRouteLookup{}), observer.NewLatestArrivalCache(), observer.NewVehiclePositionCache())
	got, err := svc.ArrivalsAtStop(context.Background(), "S1", now, "20260101")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the far-future trip to survive regardless of vehicle status, got %+v", got)
	}
	if got[0].Certainty != "scheduled" {
		t.Errorf("expected certainty scheduled, got %s", got[0].Certainty)
	}
}

func TestFilterGhostsByRoute_VouchesAfterTrustedSighting(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	vehicles := observer.NewVehiclePositionCache()
	vehicles.Put("early-trip", observer.VehiclePosition{LastSeen: now})

	arrivals := []Arrival{
		{TripID: "early-trip", RouteID: "R1", ScheduledArrival: "09:05:00"},
		{TripID: "later-trip-no-cache-entry", RouteID: "R1", ScheduledArrival: "09:10:00"},
	}
	routeIDs := []string{"R1", "R1"}

	got := filterGhostsByRoute(arrivals, routeIDs, vehicles, now)
	if len(got) != 2 {
		t.Fatalf("expected both arrivals to survive once the route has a trusted sighting, got %+v", got)
	}
}

func TestAnnotateRelationship(t *testing.T) {
	store := &fakeStore{realistic: map[string][]gtfs.StopTime{
		"T1": {{StopSequence: 1, ArrivalTime: "12:03:00"}},
	}}
	row := gtfs.StopTimeAtStop{TripID: "T1", StopSequence: 1, ArrivalTime: "12:00:00"}
	a := &Arrival{}
	annotateRelationship(context.Background(), store, a, row)
	if a.DiffMinutes != 3 {
		t.Errorf("expected diff of 3 minutes, got %d", a.DiffMinutes)
	}
	if a.Relationship != "late" {
		t.Errorf("expected relationship 'late', got %q", a.Relationship)
	}
}

func TestAnnotateRelationship_WithinAMinuteIsOnTime(t *testing.T) {
	// 85s of historic drift rounds to 1 minute, which is still "on time";
	// the late/early thresholds are in rounded minutes, not raw seconds.
	store := &fakeStore{realistic: map[string][]gtfs.StopTime{
		"T1": {{StopSequence: 1, ArrivalTime: "12:01:25"}},
	}}
	row := gtfs.StopTimeAtStop{TripID: "T1", StopSequence: 1, ArrivalTime: "12:00:00"}
	a := &Arrival{}
	annotateRelationship(context.Background(), store, a, row)
	if a.DiffMinutes != 1 {
		t.Errorf("expected diff of 1 minute, got %d", a.DiffMinutes)
	}
	if a.Relationship != "on time" {
		t.Errorf("expected relationship 'on time', got %q", a.Relationship)
	}
}

func TestClassifyLiveDelay(t *testing.T) {
	cases := []struct {
		delay int
		want  string
	}{
		{120, "late"},
		{61, "late"},
		{60, "on time"},
		{0, "on time"},
		{-60, "on time"},
		{-61, "early"},
		{-120, "early"},
	}
	for _, c := range cases {
		if got := classifyLiveDelay(c.delay); got != c.want {
			t.Errorf("classifyLiveDelay(%d) = %q, want %q", c.delay, got, c.want)
		}
	}
}

func TestArrivalsAtStop_CarriesLiveRelationship(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		candidates: []gtfs.StopTimeAtStop{
			{TripID: "T1", RouteID: "R1", StopSequence: 1, ArrivalTime: "09:30:00", ArrivalSec: hms(9, 30, 0)},
		},
	}
	latest := observer.NewLatestArrivalCache()
	latest.Put("T1", observer.LatestArrival{StopID: "S0", DelaySeconds: 90, LastSeen: now})

	svc := New(store, routeid.NewTranslator(fakeRouteLookup{}), latest, observer.NewVehiclePositionCache())
	got, err := svc.ArrivalsAtStop(context.Background(), "S1", now, "20260101")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one arrival, got %+v", got)
	}
	if !got[0].HasLiveDelay || got[0].LiveDelaySeconds != 90 {
		t.Errorf("expected the live delay to be carried, got %+v", got[0])
	}
	if got[0].LiveRelationship != "late" {
		t.Errorf("expected live relationship 'late', got %q", got[0].LiveRelationship)
	}
}
