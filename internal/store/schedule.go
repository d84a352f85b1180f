package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// StopByID looks up a single stop by primary key.
func (db *DB) StopByID(ctx context.Context, stopID string) (*gtfs.Stop, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon, location_type, parent_station
		FROM dim_stops WHERE stop_id = ?`, stopID)

	var s gtfs.Stop
	err := row.Scan(&s.StopID, &s.StopCode, &s.StopName, &s.StopLat, &s.StopLon, &s.LocationType, &s.ParentStation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up stop %s: %w", stopID, err)
	}
	return &s, nil
}

// TripByID looks up a single trip by primary key.
func (db *DB) TripByID(ctx context.Context, tripID string) (*gtfs.Trip, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT trip_id, route_id, service_id, trip_headsign, direction_id
		FROM dim_trips WHERE trip_id = ?`, tripID)

	var t gtfs.Trip
	err := row.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.DirectionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up trip %s: %w", tripID, err)
	}
	return &t, nil
}

// RouteByID looks up a single route by primary key.
func (db *DB) RouteByID(ctx context.Context, routeID string) (*gtfs.Route, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT route_id, agency_id, route_short_name, route_long_name, route_type, route_color, route_text_color
		FROM dim_routes WHERE route_id = ?`, routeID)

	var r gtfs.Route
	err := row.Scan(&r.RouteID, &r.AgencyID, &r.RouteShortName, &r.RouteLongName, &r.RouteType, &r.RouteColor, &r.RouteTextColor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up route %s: %w", routeID, err)
	}
	return &r, nil
}

// StopTimesForTrip returns a trip's stop-times ordered by stop-sequence,
// reading from the realistic table and falling back to the scheduled table
// when the trip has no realistic rows yet (e.g. freshly ingested, never
// synthesised).
func (db *DB) StopTimesForTrip(ctx context.Context, tripID string) ([]gtfs.StopTime, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT trip_id, stop_sequence, stop_id, arrival_time, departure_time
		FROM realistic_stop_times WHERE trip_id = ? ORDER BY stop_sequence`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to read realistic stop_times for %s: %w", tripID, err)
	}
	times, err := scanStopTimes(rows)
	if err != nil {
		return nil, err
	}
	if len(times) > 0 {
		return times, nil
	}

	return db.StopTimesForTripScheduled(ctx, tripID)
}

// StopTimesForTripScheduled returns a trip's scheduled stop-times (never
// the realistic table), ordered by stop-sequence. The Synthesiser reads
// this directly; it must always start from the nominal schedule, never
// from a prior synthesis run's output.
func (db *DB) StopTimesForTripScheduled(ctx context.Context, tripID string) ([]gtfs.StopTime, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT trip_id, stop_sequence, stop_id, arrival_time, departure_time
		FROM dim_stop_times WHERE trip_id = ? ORDER BY stop_sequence`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduled stop_times for %s: %w", tripID, err)
	}
	return scanStopTimes(rows)
}

func scanStopTimes(rows *sql.Rows) ([]gtfs.StopTime, error) {
	defer rows.Close()
	var times []gtfs.StopTime
	for rows.Next() {
		var st gtfs.StopTime
		if err := rows.Scan(&st.TripID, &st.StopSequence, &st.StopID, &st.ArrivalTime, &st.DepartureTime); err != nil {
			return nil, fmt.Errorf("failed to scan stop_time row: %w", err)
		}
		times = append(times, st)
	}
	return times, rows.Err()
}

// ServiceOperatesOn reports whether serviceID runs on the given YYYYMMDD
// date. Only "added" exceptions are stored, so absence means not running.
func (db *DB) ServiceOperatesOn(ctx context.Context, serviceID, date string) (bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM dim_calendar_dates WHERE service_id = ? AND date = ? AND exception_type = 1`, serviceID, date)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AllStops returns every stop in the schedule; used by boot-time in-memory
// structures (the Timetable's stop table and the transfer graph).
func (db *DB) AllStops(ctx context.Context) ([]gtfs.Stop, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon, location_type, parent_station FROM dim_stops`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []gtfs.Stop
	for rows.Next() {
		var s gtfs.Stop
		if err := rows.Scan(&s.StopID, &s.StopCode, &s.StopName, &s.StopLat, &s.StopLon, &s.LocationType, &s.ParentStation); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// AllTrips returns every trip in the schedule.
func (db *DB) AllTrips(ctx context.Context) ([]gtfs.Trip, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT trip_id, route_id, service_id, trip_headsign, direction_id FROM dim_trips`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []gtfs.Trip
	for rows.Next() {
		var t gtfs.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.DirectionID); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// StopTimesActiveOn returns every realistic stop-time (falling back to
// scheduled) belonging to a trip whose service operates on the given
// YYYYMMDD date, ordered by trip then stop-sequence. This is the bulk load
// the In-Memory Timetable uses at boot.
func (db *DB) StopTimesActiveOn(ctx context.Context, date string) ([]gtfs.StopTime, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rst.trip_id, rst.stop_sequence, rst.stop_id, rst.arrival_time, rst.departure_time
		FROM realistic_stop_times rst
		JOIN dim_trips t ON t.trip_id = rst.trip_id
		JOIN dim_calendar_dates cd ON cd.service_id = t.service_id
		WHERE cd.date = ? AND cd.exception_type = 1
		ORDER BY rst.trip_id, rst.stop_sequence`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read active realistic stop_times: %w", err)
	}
	times, err := scanStopTimes(rows)
	if err != nil {
		return nil, err
	}
	if len(times) > 0 {
		return times, nil
	}

	rows, err = db.conn.QueryContext(ctx, `
		SELECT st.trip_id, st.stop_sequence, st.stop_id, st.arrival_time, st.departure_time
		FROM dim_stop_times st
		JOIN dim_trips t ON t.trip_id = st.trip_id
		JOIN dim_calendar_dates cd ON cd.service_id = t.service_id
		WHERE cd.date = ? AND cd.exception_type = 1
		ORDER BY st.trip_id, st.stop_sequence`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read active scheduled stop_times: %w", err)
	}
	return scanStopTimes(rows)
}

// StopTimesForStopFrom returns every upcoming arrival at a stop, on
// trips whose service operates on date, with scheduled arrival seconds
// (handling HH>=24 rollover) at or after fromSec, ordered by arrival.
// Reads the realistic table, falling back per-trip to scheduled rows
// for trips that have not yet been synthesised, mirroring
// StopTimesForTrip's fallback rule.
func (db *DB) StopTimesForStopFrom(ctx context.Context, stopID string, fromSec int, date string) ([]gtfs.StopTimeAtStop, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rst.trip_id, t.route_id, rst.stop_sequence, rst.arrival_time, rst.departure_time
		FROM realistic_stop_times rst
		JOIN dim_trips t ON t.trip_id = rst.trip_id
		JOIN dim_calendar_dates cd ON cd.service_id = t.service_id
		WHERE rst.stop_id = ? AND cd.date = ? AND cd.exception_type = 1`, stopID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read realistic arrivals at %s: %w", stopID, err)
	}
	realistic, err := scanStopTimesAtStop(rows)
	if err != nil {
		return nil, err
	}

	haveRealistic := make(map[string]bool, len(realistic))
	for _, r := range realistic {
		haveRealistic[r.TripID] = true
	}

	rows, err = db.conn.QueryContext(ctx, `
		SELECT st.trip_id, t.route_id, st.stop_sequence, st.arrival_time, st.departure_time
		FROM dim_stop_times st
		JOIN dim_trips t ON t.trip_id = st.trip_id
		JOIN dim_calendar_dates cd ON cd.service_id = t.service_id
		WHERE st.stop_id = ? AND cd.date = ? AND cd.exception_type = 1`, stopID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduled arrivals at %s: %w", stopID, err)
	}
	scheduled, err := scanStopTimesAtStop(rows)
	if err != nil {
		return nil, err
	}

	candidates := realistic
	for _, s := range scheduled {
		if !haveRealistic[s.TripID] {
			candidates = append(candidates, s)
		}
	}

	var out []gtfs.StopTimeAtStop
	for _, c := range candidates {
		if c.ArrivalSec >= fromSec {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivalSec < out[j].ArrivalSec })
	return out, nil
}

func scanStopTimesAtStop(rows *sql.Rows) ([]gtfs.StopTimeAtStop, error) {
	defer rows.Close()
	var out []gtfs.StopTimeAtStop
	for rows.Next() {
		var s gtfs.StopTimeAtStop
		if err := rows.Scan(&s.TripID, &s.RouteID, &s.StopSequence, &s.ArrivalTime, &s.DepartureTime); err != nil {
			return nil, fmt.Errorf("failed to scan stop_time_at_stop row: %w", err)
		}
		sec, err := parseHMS(s.ArrivalTime)
		if err != nil {
			return nil, fmt.Errorf("malformed arrival_time for trip %s: %w", s.TripID, err)
		}
		s.ArrivalSec = sec
		out = append(out, s)
	}
	return out, rows.Err()
}

func parseHMS(s string) (int, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, err
	}
	return h*3600 + m*60 + sec, nil
}
