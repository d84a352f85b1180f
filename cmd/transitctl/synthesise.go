package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atanasr/transit-raptor/internal/arrivalslog"
	"github.com/atanasr/transit-raptor/internal/config"
	"github.com/atanasr/transit-raptor/internal/store"
	"github.com/atanasr/transit-raptor/internal/synth"
)

var synthesiseNowCmd = &cobra.Command{
	Use:   "synthesise-now",
	Short: "Replay the arrivals log through the Realistic-Time Synthesis Engine and replace realistic_stop_times",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		path := resolveDBPath(cfg)

		db, err := store.Connect(path)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		log, err := arrivalslog.Open(cfg.ArrivalsLogPath)
		if err != nil {
			return fmt.Errorf("open arrivals log: %w", err)
		}

		times, err := synth.Run(ctx, db, log)
		if err != nil {
			return fmt.Errorf("synthesise: %w", err)
		}
		if err := db.ReplaceRealisticStopTimes(ctx, times); err != nil {
			return fmt.Errorf("replace realistic stop times: %w", err)
		}

		fmt.Printf("synthesised %d realistic stop times from %s\n", len(times), cfg.ArrivalsLogPath)
		return nil
	},
}
