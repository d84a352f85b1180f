package store

import (
	"context"
	"fmt"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// ReplaceRealisticStopTimes atomically replaces the entire realistic
// stop-times table with the Synthesiser's freshly computed output;
// stale rows from a prior run never survive a new one.
func (db *DB) ReplaceRealisticStopTimes(ctx context.Context, times []gtfs.StopTime) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin synthesis transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM realistic_stop_times"); err != nil {
		return fmt.Errorf("failed to clear realistic_stop_times: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO realistic_stop_times (trip_id, stop_sequence, stop_id, arrival_time, departure_time)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range times {
		if _, err := stmt.ExecContext(ctx, st.TripID, st.StopSequence, st.StopID, st.ArrivalTime, st.DepartureTime); err != nil {
			return fmt.Errorf("failed to insert realistic stop_time %s/%d: %w", st.TripID, st.StopSequence, err)
		}
	}

	return tx.Commit()
}
