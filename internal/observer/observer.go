// Package observer is the Arrival Observer: it polls a GTFS-Realtime
// vehicle-position feed, detects geodesic proximity to each tracked trip's
// stops, and records the first such arrival per (trip, stop) to the
// arrivals log while maintaining bounded-TTL in-memory caches.
package observer

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/atanasr/transit-raptor/internal/arrivalslog"
	"github.com/atanasr/transit-raptor/internal/geo"
	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// PollInterval is the cadence at which the position feed is fetched.
const PollInterval = 5 * time.Second

// DistanceThresholdM is the geodesic distance within which a vehicle is
// considered to have arrived at a stop.
const DistanceThresholdM = 30.0

// BaselineTracker is the Delay Health Metrics slice the Observer feeds on
// every logged arrival, so operators can watch per-route punctuality
// without re-scanning the arrivals log. Optional: a nil Tracker
// simply skips this diagnostic feed.
type BaselineTracker interface {
	Observe(ctx context.Context, rec arrivalslog.Record, now time.Time) error
}

// Source is the slice of the Schedule Store the Observer reads static
// schedule data from, once, per trip (cached thereafter).
type Source interface {
	TripByID(ctx context.Context, tripID string) (*gtfs.Trip, error)
	StopTimesForTripScheduled(ctx context.Context, tripID string) ([]gtfs.StopTime, error)
	StopByID(ctx context.Context, stopID string) (*gtfs.Stop, error)
}

type tripStop struct {
	StopID       string
	StopSequence int
	StopName     string
	Lat, Lon     float64
	ScheduledSec int
}

type tripInfo struct {
	RouteID   string
	ServiceID string
	Stops     []tripStop
}

// Observer is the background vehicle-arrival poller.
type Observer struct {
	feedURL        string
	pollInterval   time.Duration
	requestTimeout time.Duration
	client         *http.Client
	store          Source
	log            *arrivalslog.Log
	Latest         *LatestArrivalCache
	Vehicles       *VehiclePositionCache
	Tracker        BaselineTracker

	tripCacheMu sync.RWMutex
	tripCache   map[string]*tripInfo // tripID -> static stop list, lazily built

	observedMu    sync.Mutex
	observedStops map[string]map[string]bool // tripID -> set of stop-ids already logged this process lifetime
}

// New builds an Observer. feedURL is the GTFS-RT vehicle-positions
// endpoint. A zero pollInterval falls back to PollInterval.
func New(feedURL string, pollInterval, requestTimeout time.Duration, store Source, log *arrivalslog.Log) *Observer {
	if pollInterval <= 0 {
		pollInterval = PollInterval
	}
	return &Observer{
		feedURL:        feedURL,
		pollInterval:   pollInterval,
		requestTimeout: requestTimeout,
		client:         &http.Client{Timeout: requestTimeout},
		store:          store,
		log:            log,
		Latest:         NewLatestArrivalCache(),
		Vehicles:       NewVehiclePositionCache(),
		tripCache:      make(map[string]*tripInfo),
		observedStops:  make(map[string]map[string]bool),
	}
}

// Run polls once immediately and then on the configured interval until
// ctx is cancelled. A fetch or decode failure skips the tick; it never
// terminates the loop.
func (o *Observer) Run(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	if err := o.Poll(ctx); err != nil {
		log.Printf("observer: tick failed, skipping: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Poll(ctx); err != nil {
				log.Printf("observer: tick failed, skipping: %v", err)
			}
		}
	}
}

// Poll runs a single fetch-decode-observe cycle.
func (o *Observer) Poll(ctx context.Context) error {
	feed, err := o.fetchFeed(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch vehicle-position feed")
	}

	now := time.Now()
	seenTrips := make(map[string]bool)

	for _, entity := range feed.Entity {
		if entity.Vehicle == nil || entity.Vehicle.Trip == nil || entity.Vehicle.Position == nil {
			continue
		}
		v := entity.Vehicle
		if v.Trip.TripId == nil {
			continue
		}
		tripID := v.Trip.GetTripId()

		info, err := o.tripInfoFor(ctx, tripID)
		if err != nil || info == nil {
			continue
		}

		lat := float64(v.Position.GetLatitude())
		lon := float64(v.Position.GetLongitude())
		vehicleID := tripID
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			vehicleID = v.Vehicle.GetId()
		}

		seenTrips[tripID] = true
		o.Vehicles.Put(tripID, VehiclePosition{Latitude: lat, Longitude: lon, VehicleID: vehicleID, LastSeen: now})

		for _, st := range info.Stops {
			if !geo.ValidCoordinate(st.Lat, st.Lon) {
				continue
			}
			dist := geo.Haversine(lat, lon, st.Lat, st.Lon)
			if dist >= DistanceThresholdM {
				continue
			}
			if o.alreadyObserved(tripID, st.StopID) {
				continue
			}

			delay, scheduledInstant := computeDelay(st.ScheduledSec, now)

			rec := arrivalslog.Record{
				Timestamp:        now.Format("2006-01-02 15:04:05 MST"),
				VehicleID:        vehicleID,
				TripID:           tripID,
				RouteID:          info.RouteID,
				StopID:           st.StopID,
				StopName:         st.StopName,
				ScheduledArrival: scheduledInstant.Format("2006-01-02 15:04:05 MST"),
				ActualArrival:    now.Format("2006-01-02 15:04:05 MST"),
				DelaySeconds:     delay,
				DayOfWeek:        int(now.Weekday()),
				Hour:             now.Hour(),
			}
			if err := o.log.Append(rec); err != nil {
				continue
			}
			if o.Tracker != nil {
				if err := o.Tracker.Observe(ctx, rec, now); err != nil {
					log.Printf("observer: baseline tracker update failed for route %s: %v", info.RouteID, err)
				}
			}

			o.markObserved(tripID, st.StopID)
			o.Latest.Put(tripID, LatestArrival{StopID: st.StopID, StopSequence: st.StopSequence, DelaySeconds: delay, LastSeen: now})
		}
	}

	for tripID := range seenTrips {
		o.Latest.Touch(tripID, now)
	}
	return nil
}

// computeDelay anchors a scheduled seconds-since-midnight value to a
// concrete instant and returns (delay in seconds, chosen instant). The
// anchor is today's local midnight; HH>=24 values shift whole days, and
// the closest of {anchor-1d, anchor, anchor+1d} to now wins, which
// resolves both pre-midnight and post-midnight service.
func computeDelay(scheduledSec int, now time.Time) (int, time.Time) {
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	dayOffset := scheduledSec / 86400
	hourOfDay := scheduledSec % 86400
	candidateBase := base.AddDate(0, 0, dayOffset).Add(time.Duration(hourOfDay) * time.Second)

	best := candidateBase
	bestDiff := absDuration(now.Sub(candidateBase))
	for _, delta := range []int{-1, 1} {
		candidate := candidateBase.AddDate(0, 0, delta)
		if diff := absDuration(now.Sub(candidate)); diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}

	return int(now.Sub(best).Seconds()), best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// tripInfoFor returns (and lazily caches) a trip's static schedule:
// its route, service, and stop list with coordinates joined in.
func (o *Observer) tripInfoFor(ctx context.Context, tripID string) (*tripInfo, error) {
	o.tripCacheMu.RLock()
	if info, ok := o.tripCache[tripID]; ok {
		o.tripCacheMu.RUnlock()
		return info, nil
	}
	o.tripCacheMu.RUnlock()

	trip, err := o.store.TripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}
	scheduled, err := o.store.StopTimesForTripScheduled(ctx, tripID)
	if err != nil {
		return nil, err
	}

	stops := make([]tripStop, 0, len(scheduled))
	for _, st := range scheduled {
		stop, err := o.store.StopByID(ctx, st.StopID)
		if err != nil || stop == nil {
			continue
		}
		sec, err := parseHMS(st.ArrivalTime)
		if err != nil {
			continue
		}
		stops = append(stops, tripStop{
			StopID:       st.StopID,
			StopSequence: st.StopSequence,
			StopName:     stop.StopName,
			Lat:          stop.StopLat,
			Lon:          stop.StopLon,
			ScheduledSec: sec,
		})
	}

	info := &tripInfo{RouteID: trip.RouteID, ServiceID: trip.ServiceID, Stops: stops}
	o.tripCacheMu.Lock()
	o.tripCache[tripID] = info
	o.tripCacheMu.Unlock()
	return info, nil
}

func (o *Observer) alreadyObserved(tripID, stopID string) bool {
	o.observedMu.Lock()
	defer o.observedMu.Unlock()
	return o.observedStops[tripID][stopID]
}

func (o *Observer) markObserved(tripID, stopID string) {
	o.observedMu.Lock()
	defer o.observedMu.Unlock()
	if o.observedStops[tripID] == nil {
		o.observedStops[tripID] = make(map[string]bool)
	}
	o.observedStops[tripID][stopID] = true
}

func (o *Observer) fetchFeed(ctx context.Context) (*gtfsrt.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	feed := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf feed: %w", err)
	}
	return feed, nil
}

func parseHMS(s string) (int, error) {
	if len(s) < 7 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(s[6:8])
	if err != nil {
		return 0, err
	}
	return h*3600 + m*60 + sec, nil
}
