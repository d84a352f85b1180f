// Command transit-server is the process bootstrap: config load, database
// connect + schema, static ingest and in-memory structure construction,
// background observer startup, HTTP surface startup, and graceful
// shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atanasr/transit-raptor/internal/arrivalslog"
	"github.com/atanasr/transit-raptor/internal/arrivalsvc"
	"github.com/atanasr/transit-raptor/internal/config"
	"github.com/atanasr/transit-raptor/internal/delaymetrics"
	"github.com/atanasr/transit-raptor/internal/gtfs"
	"github.com/atanasr/transit-raptor/internal/httpapi"
	"github.com/atanasr/transit-raptor/internal/observer"
	"github.com/atanasr/transit-raptor/internal/orchestrator"
	"github.com/atanasr/transit-raptor/internal/raptor"
	"github.com/atanasr/transit-raptor/internal/routeid"
	"github.com/atanasr/transit-raptor/internal/store"
	"github.com/atanasr/transit-raptor/internal/synth"
	"github.com/atanasr/transit-raptor/internal/timetable"
)

func main() {
	log.Println("Starting transit-raptor server...")

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local") // Overload forces override of existing values

	cfg := config.Load()
	log.Printf("Config loaded: poll_interval=%v, http_addr=%s", cfg.PollInterval, cfg.HTTPAddr)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Database connect + schema
	// ═══════════════════════════════════════════════════════
	db, err := store.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Static ingest, synthesis, timetable construction
	// ═══════════════════════════════════════════════════════
	if err := refreshStaticData(ctx, cfg, db); err != nil {
		log.Printf("Warning: static data refresh failed: %v", err)
	}

	arrivalsLog, err := arrivalslog.Open(cfg.ArrivalsLogPath)
	if err != nil {
		log.Fatalf("Failed to open arrivals log: %v", err)
	}

	if cfg.SynthOnBoot {
		if err := runSynthesis(ctx, db, arrivalsLog); err != nil {
			log.Printf("Warning: boot-time synthesis failed: %v", err)
		}
	}

	serviceDate := timetable.ActiveServiceDate(time.Now())
	tt, err := timetable.Load(ctx, db, serviceDate)
	if err != nil {
		log.Fatalf("Failed to build in-memory timetable: %v", err)
	}
	log.Printf("Timetable loaded for service date %s: %d stops, %d trips, %d transfer edges",
		serviceDate, len(tt.Stops), len(tt.Trips), countTransfers(tt))

	engine := raptor.NewEngine(tt)
	translator := routeid.NewTranslator(db)
	orch := orchestrator.New(engine, tt, translator)

	arrivalObserver := observer.New(cfg.GTFSRealtimeURL, cfg.PollInterval, cfg.RequestTimeout, db, arrivalsLog)
	tracker := delaymetrics.NewTracker(db)
	arrivalObserver.Tracker = tracker

	arrivalsService := arrivalsvc.New(db, translator, arrivalObserver.Latest, arrivalObserver.Vehicles)

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Background Observer + HTTP surface
	// ═══════════════════════════════════════════════════════
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go arrivalObserver.Run(runCtx)

	server := httpapi.NewServer(orch, arrivalsService, tracker, httpapi.SystemClock{})
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(cfg.CORSOrigins),
	}

	go func() {
		log.Printf("HTTP surface listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Graceful shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func refreshStaticData(ctx context.Context, cfg *config.Config, db *store.DB) error {
	if _, err := os.Stat(cfg.GTFSStaticZipPath); err != nil {
		return err
	}

	lastIngest, err := db.LatestIngestAt(ctx)
	if err != nil {
		return err
	}
	if !lastIngest.IsZero() && time.Since(lastIngest) < time.Duration(cfg.StaticRefreshDays)*24*time.Hour {
		log.Printf("Static data is fresh (last ingest %s), skipping re-ingest", lastIngest.Format(time.RFC3339))
		return nil
	}

	data, err := gtfs.Parse(cfg.GTFSStaticZipPath)
	if err != nil {
		return err
	}
	snapshotID, err := db.Ingest(ctx, data)
	if err != nil {
		return err
	}
	log.Printf("Static ingest snapshot %s committed", snapshotID)
	return nil
}

func runSynthesis(ctx context.Context, db *store.DB, log_ *arrivalslog.Log) error {
	times, err := synth.Run(ctx, db, log_)
	if err != nil {
		return err
	}
	return db.ReplaceRealisticStopTimes(ctx, times)
}

func countTransfers(tt *timetable.Timetable) int {
	n := 0
	for _, edges := range tt.Transfers {
		n += len(edges)
	}
	return n / 2
}
