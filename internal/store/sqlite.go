// Package store is the Schedule Store: typed, indexed, read-only-at-query
// access to the static schedule, backed by a single SQLite file that also
// holds the Synthesiser's realistic-stop-times output and the Delay Health
// Metrics baselines. The Arrival Observer's own log is the flat CSV file
// read/written by internal/arrivalslog.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the single SQLite connection shared by every writer in this
// process. SQLite permits exactly one writer at a time, so the pool is
// capped at one connection, which removes "database is locked" failures at
// the cost of serialising writes, which this system's write volume (one
// poll tick's worth of upserts every few seconds) easily tolerates.
type DB struct {
	conn *sql.DB
}

// Connect opens the SQLite database in WAL mode with a single-writer pool.
func Connect(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// EnsureSchema creates every table this system needs if it doesn't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dim_routes (
		route_id TEXT PRIMARY KEY,
		agency_id TEXT,
		route_short_name TEXT,
		route_long_name TEXT,
		route_type INTEGER NOT NULL,
		route_color TEXT,
		route_text_color TEXT
	);

	CREATE TABLE IF NOT EXISTS dim_stops (
		stop_id TEXT PRIMARY KEY,
		stop_code TEXT,
		stop_name TEXT NOT NULL,
		stop_lat REAL NOT NULL,
		stop_lon REAL NOT NULL,
		location_type INTEGER,
		parent_station TEXT
	);

	CREATE TABLE IF NOT EXISTS dim_trips (
		trip_id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		trip_headsign TEXT,
		direction_id INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_dim_trips_route ON dim_trips(route_id);
	CREATE INDEX IF NOT EXISTS idx_dim_trips_service ON dim_trips(service_id);

	CREATE TABLE IF NOT EXISTS dim_stop_times (
		trip_id TEXT NOT NULL,
		stop_sequence INTEGER NOT NULL,
		stop_id TEXT NOT NULL,
		arrival_time TEXT NOT NULL,
		departure_time TEXT NOT NULL,
		PRIMARY KEY (trip_id, stop_sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_dim_stop_times_stop ON dim_stop_times(stop_id);

	CREATE TABLE IF NOT EXISTS realistic_stop_times (
		trip_id TEXT NOT NULL,
		stop_sequence INTEGER NOT NULL,
		stop_id TEXT NOT NULL,
		arrival_time TEXT NOT NULL,
		departure_time TEXT NOT NULL,
		PRIMARY KEY (trip_id, stop_sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_realistic_stop_times_stop ON realistic_stop_times(stop_id);

	CREATE TABLE IF NOT EXISTS dim_calendar_dates (
		service_id TEXT NOT NULL,
		date TEXT NOT NULL,
		exception_type INTEGER NOT NULL,
		PRIMARY KEY (service_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_dim_calendar_dates_date ON dim_calendar_dates(date);

	CREATE TABLE IF NOT EXISTS route_delay_baselines (
		route_id TEXT PRIMARY KEY,
		sample_count INTEGER NOT NULL,
		mean_delay_seconds REAL NOT NULL,
		m2 REAL NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingest_snapshots (
		snapshot_id TEXT PRIMARY KEY,
		route_count INTEGER NOT NULL,
		stop_count INTEGER NOT NULL,
		trip_count INTEGER NOT NULL,
		stop_time_count INTEGER NOT NULL,
		ingested_at TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Println("Database schema ensured")
	return nil
}
