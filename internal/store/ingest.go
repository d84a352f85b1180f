package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// Ingest replaces the dimension tables (routes, stops, trips, stop_times,
// calendar_dates) with the contents of a freshly parsed static feed. The
// whole ingest runs in one transaction: either the new schedule is fully in
// place or the prior one is left untouched. Each successful ingest is
// recorded under a fresh snapshot ID, the way a realtime batch pull is
// tagged for later correlation in operator tooling.
func (db *DB) Ingest(ctx context.Context, data *gtfs.Data) (uuid.UUID, error) {
	snapshotID := uuid.New()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{"dim_routes", "dim_stops", "dim_trips", "dim_stop_times", "dim_calendar_dates"}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return uuid.Nil, fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}

	routeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dim_routes (route_id, agency_id, route_short_name, route_long_name, route_type, route_color, route_text_color)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer routeStmt.Close()
	for _, r := range data.Routes {
		if _, err := routeStmt.ExecContext(ctx, r.RouteID, r.AgencyID, r.RouteShortName, r.RouteLongName, r.RouteType, r.RouteColor, r.RouteTextColor); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert route %s: %w", r.RouteID, err)
		}
	}

	stopStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dim_stops (stop_id, stop_code, stop_name, stop_lat, stop_lon, location_type, parent_station)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer stopStmt.Close()
	for _, s := range data.Stops {
		if _, err := stopStmt.ExecContext(ctx, s.StopID, s.StopCode, s.StopName, s.StopLat, s.StopLon, s.LocationType, s.ParentStation); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert stop %s: %w", s.StopID, err)
		}
	}

	tripStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dim_trips (trip_id, route_id, service_id, trip_headsign, direction_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer tripStmt.Close()
	for _, t := range data.Trips {
		if _, err := tripStmt.ExecContext(ctx, t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign, t.DirectionID); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert trip %s: %w", t.TripID, err)
		}
	}

	stopTimeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dim_stop_times (trip_id, stop_sequence, stop_id, arrival_time, departure_time)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer stopTimeStmt.Close()
	for _, st := range data.StopTimes {
		if _, err := stopTimeStmt.ExecContext(ctx, st.TripID, st.StopSequence, st.StopID, st.ArrivalTime, st.DepartureTime); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert stop_time %s/%d: %w", st.TripID, st.StopSequence, err)
		}
	}

	calStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dim_calendar_dates (service_id, date, exception_type)
		VALUES (?, ?, ?)
		ON CONFLICT (service_id, date) DO UPDATE SET exception_type = excluded.exception_type`)
	if err != nil {
		return uuid.Nil, err
	}
	defer calStmt.Close()
	for _, cd := range data.CalendarDates {
		if cd.ExceptionType != 1 {
			// Only "added" exceptions are retained; "removed" is honoured by absence.
			continue
		}
		if _, err := calStmt.ExecContext(ctx, cd.ServiceID, cd.Date, cd.ExceptionType); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert calendar_date %s/%s: %w", cd.ServiceID, cd.Date, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_snapshots (snapshot_id, route_count, stop_count, trip_count, stop_time_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshotID.String(), len(data.Routes), len(data.Stops), len(data.Trips), len(data.StopTimes), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record ingest snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit ingest transaction: %w", err)
	}
	return snapshotID, nil
}

// LatestIngestAt returns the time of the most recent ingest snapshot, or
// (zero, nil) when the database has never been ingested into.
func (db *DB) LatestIngestAt(ctx context.Context) (time.Time, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT MAX(ingested_at) FROM ingest_snapshots`)
	var raw sql.NullString
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest ingest snapshot: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed ingest timestamp %q: %w", raw.String, err)
	}
	return t, nil
}
