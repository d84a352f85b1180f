package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atanasr/transit-raptor/internal/config"
	"github.com/atanasr/transit-raptor/internal/gtfs"
	"github.com/atanasr/transit-raptor/internal/store"
)

var ingestZipPath string

var ingestNowCmd = &cobra.Command{
	Use:   "ingest-now",
	Short: "Parse a GTFS static zip and replace the Schedule Store's dimension tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		path := resolveDBPath(cfg)
		zipPath := ingestZipPath
		if zipPath == "" {
			zipPath = cfg.GTFSStaticZipPath
		}

		db, err := store.Connect(path)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		data, err := gtfs.Parse(zipPath)
		if err != nil {
			return fmt.Errorf("parse %s: %w", zipPath, err)
		}
		snapshotID, err := db.Ingest(ctx, data)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		fmt.Printf("ingested %s (snapshot %s): %d stops, %d routes, %d trips, %d stop_times\n",
			zipPath, snapshotID, len(data.Stops), len(data.Routes), len(data.Trips), len(data.StopTimes))
		return nil
	},
}

func init() {
	ingestNowCmd.Flags().StringVar(&ingestZipPath, "zip", "", "path to the GTFS static zip (defaults to GTFS_STATIC_ZIP)")
}
