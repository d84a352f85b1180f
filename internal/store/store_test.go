package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Connect(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func sampleData() *gtfs.Data {
	return &gtfs.Data{
		Routes: []gtfs.Route{{RouteID: "R1", RouteShortName: "84", RouteType: 3}},
		Stops: []gtfs.Stop{
			{StopID: "S1", StopName: "Sants", StopLat: 41.38, StopLon: 2.14},
			{StopID: "S2", StopName: "Catalunya", StopLat: 41.387, StopLon: 2.17},
		},
		Trips: []gtfs.Trip{{TripID: "T1", RouteID: "R1", ServiceID: "WEEKDAY"}},
		StopTimes: []gtfs.StopTime{
			{TripID: "T1", StopID: "S1", StopSequence: 1, ArrivalTime: "08:00:00", DepartureTime: "08:00:00"},
			{TripID: "T1", StopID: "S2", StopSequence: 2, ArrivalTime: "08:10:00", DepartureTime: "08:10:00"},
		},
		CalendarDates: []gtfs.CalendarDate{{ServiceID: "WEEKDAY", Date: "20260302", ExceptionType: 1}},
	}
}

func TestIngestAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Ingest(ctx, sampleData())
	require.NoError(t, err)

	stop, err := db.StopByID(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, stop)
	assert.Equal(t, "Sants", stop.StopName)

	trip, err := db.TripByID(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, "R1", trip.RouteID)

	route, err := db.RouteByID(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "84", route.RouteShortName)

	times, err := db.StopTimesForTripScheduled(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, times, 2)

	operates, err := db.ServiceOperatesOn(ctx, "WEEKDAY", "20260302")
	require.NoError(t, err)
	assert.True(t, operates, "WEEKDAY has an added exception on 20260302")

	operates, err = db.ServiceOperatesOn(ctx, "WEEKDAY", "20260303")
	require.NoError(t, err)
	assert.False(t, operates, "absence of an exception means the service does not run")
}

func TestIngest_ReplacesPriorSchedule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.Ingest(ctx, sampleData())
	require.NoError(t, err)
	second := &gtfs.Data{Stops: []gtfs.Stop{{StopID: "S9", StopName: "New Stop", StopLat: 41.4, StopLon: 2.2}}}
	next, err := db.Ingest(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, first, next, "each ingest records its own snapshot id")

	stop, err := db.StopByID(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, stop, "the prior ingest's stop must be replaced, not merged")

	stop, err = db.StopByID(ctx, "S9")
	require.NoError(t, err)
	assert.NotNil(t, stop, "the new ingest's stop must be present")
}

func TestReplaceRealisticStopTimes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.Ingest(ctx, sampleData())
	require.NoError(t, err)

	realistic := []gtfs.StopTime{
		{TripID: "T1", StopID: "S1", StopSequence: 1, ArrivalTime: "08:01:15", DepartureTime: "08:01:15"},
	}
	require.NoError(t, db.ReplaceRealisticStopTimes(ctx, realistic))

	rows, err := db.StopTimesForTrip(ctx, "T1")
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.StopSequence == 1 && r.ArrivalTime == "08:01:15" {
			found = true
		}
	}
	assert.True(t, found, "realistic stop time must take precedence for sequence 1, got %+v", rows)
}

func TestRouteBaseline_SaveAndLoad(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRouteBaseline(ctx, RouteDelayBaseline{RouteID: "R1", SampleCount: 5, MeanDelaySec: 42, M2: 100, UpdatedAt: "2026-01-01T00:00:00Z"}))

	b, err := db.RouteBaseline(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 5, b.SampleCount)

	missing, err := db.RouteBaseline(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing, "unknown route must have no baseline")
}
