package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RouteDelayBaseline is the persisted form of a route's Welford
// accumulator.
type RouteDelayBaseline struct {
	RouteID      string
	SampleCount  int
	MeanDelaySec float64
	M2           float64
	UpdatedAt    string
}

// RouteBaseline reads one route's delay baseline, or nil if none recorded yet.
func (db *DB) RouteBaseline(ctx context.Context, routeID string) (*RouteDelayBaseline, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT route_id, sample_count, mean_delay_seconds, m2, updated_at
		FROM route_delay_baselines WHERE route_id = ?`, routeID)

	var b RouteDelayBaseline
	err := row.Scan(&b.RouteID, &b.SampleCount, &b.MeanDelaySec, &b.M2, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read route baseline %s: %w", routeID, err)
	}
	return &b, nil
}

// AllRouteBaselines returns every route's current baseline, for the
// route-health diagnostic surface.
func (db *DB) AllRouteBaselines(ctx context.Context) ([]RouteDelayBaseline, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT route_id, sample_count, mean_delay_seconds, m2, updated_at FROM route_delay_baselines`)
	if err != nil {
		return nil, fmt.Errorf("failed to read route baselines: %w", err)
	}
	defer rows.Close()

	var out []RouteDelayBaseline
	for rows.Next() {
		var b RouteDelayBaseline
		if err := rows.Scan(&b.RouteID, &b.SampleCount, &b.MeanDelaySec, &b.M2, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveRouteBaseline upserts a route's updated accumulator.
func (db *DB) SaveRouteBaseline(ctx context.Context, b RouteDelayBaseline) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO route_delay_baselines (route_id, sample_count, mean_delay_seconds, m2, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (route_id) DO UPDATE SET
			sample_count = excluded.sample_count,
			mean_delay_seconds = excluded.mean_delay_seconds,
			m2 = excluded.m2,
			updated_at = excluded.updated_at`,
		b.RouteID, b.SampleCount, b.MeanDelaySec, b.M2, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save route baseline %s: %w", b.RouteID, err)
	}
	return nil
}
