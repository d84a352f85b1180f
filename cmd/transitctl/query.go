package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atanasr/transit-raptor/internal/config"
	"github.com/atanasr/transit-raptor/internal/orchestrator"
	"github.com/atanasr/transit-raptor/internal/raptor"
	"github.com/atanasr/transit-raptor/internal/routeid"
	"github.com/atanasr/transit-raptor/internal/store"
	"github.com/atanasr/transit-raptor/internal/timetable"
)

var (
	queryOriginLat, queryOriginLon float64
	queryDestLat, queryDestLon     float64
	queryDepartureTime             string
)

var queryOnceCmd = &cobra.Command{
	Use:   "query-once",
	Short: "Build the in-memory timetable for today's service date and run a single navigation query",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		path := resolveDBPath(cfg)

		db, err := store.Connect(path)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		serviceDate := timetable.ActiveServiceDate(time.Now())
		tt, err := timetable.Load(ctx, db, serviceDate)
		if err != nil {
			return fmt.Errorf("build timetable: %w", err)
		}

		engine := raptor.NewEngine(tt)
		translator := routeid.NewTranslator(db)
		orch := orchestrator.New(engine, tt, translator)

		req := orchestrator.Request{
			OriginLat:     queryOriginLat,
			OriginLon:     queryOriginLon,
			DestLat:       queryDestLat,
			DestLon:       queryDestLon,
			DepartureTime: queryDepartureTime,
		}
		resp, err := orch.Navigate(ctx, req, time.Now())
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	queryOnceCmd.Flags().Float64Var(&queryOriginLat, "origin-lat", 0, "origin latitude")
	queryOnceCmd.Flags().Float64Var(&queryOriginLon, "origin-lon", 0, "origin longitude")
	queryOnceCmd.Flags().Float64Var(&queryDestLat, "dest-lat", 0, "destination latitude")
	queryOnceCmd.Flags().Float64Var(&queryDestLon, "dest-lon", 0, "destination longitude")
	queryOnceCmd.Flags().StringVar(&queryDepartureTime, "departure-time", "", `departure time "HH:MM:SS", defaults to now`)
	queryOnceCmd.MarkFlagRequired("origin-lat")
	queryOnceCmd.MarkFlagRequired("origin-lon")
	queryOnceCmd.MarkFlagRequired("dest-lat")
	queryOnceCmd.MarkFlagRequired("dest-lon")
}
