package observer

import (
	"sync"
	"time"
)

// CacheTTL is how long a latest-arrival cache entry is trusted before a
// reader must treat it as absent.
const CacheTTL = 60 * time.Second

// VehiclePositionTTL is how long a vehicle-position cache entry is
// trusted as reflecting a live vehicle. Entries older than this are
// still retained for display, just no longer trusted.
const VehiclePositionTTL = 30 * time.Second

// VehiclePositionRetention is how long a vehicle-position cache entry is
// kept at all; readers drop entries older than this.
const VehiclePositionRetention = 5 * time.Minute

// LatestArrival is the most recent stop-proximity observation for a trip.
type LatestArrival struct {
	StopID       string
	StopSequence int
	DelaySeconds int
	LastSeen     time.Time
}

// LatestArrivalCache holds, per trip-id, the most recently observed
// stop-proximity arrival. Entries are lazily evicted by readers rather
// than by a background sweep, matching the Observer's "no persistent
// state beyond the log and its own caches" contract.
type LatestArrivalCache struct {
	mu      sync.RWMutex
	entries map[string]LatestArrival
}

// NewLatestArrivalCache builds an empty cache.
func NewLatestArrivalCache() *LatestArrivalCache {
	return &LatestArrivalCache{entries: make(map[string]LatestArrival)}
}

// Put records (or touches) the latest arrival for a trip.
func (c *LatestArrivalCache) Put(tripID string, a LatestArrival) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tripID] = a
}

// Touch updates an existing entry's LastSeen without changing its
// stop/delay, used when a vehicle reappears in the feed without a new
// proximity trigger.
func (c *LatestArrivalCache) Touch(tripID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[tripID]; ok {
		e.LastSeen = now
		c.entries[tripID] = e
	}
}

// Get returns the latest arrival for a trip, or (zero, false) if absent
// or expired. An expired entry is removed from the cache.
func (c *LatestArrivalCache) Get(tripID string, now time.Time) (LatestArrival, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[tripID]
	if !ok {
		return LatestArrival{}, false
	}
	if now.Sub(e.LastSeen) > CacheTTL {
		delete(c.entries, tripID)
		return LatestArrival{}, false
	}
	return e, true
}

// VehiclePosition is the most recently observed live position for a trip.
type VehiclePosition struct {
	Latitude  float64
	Longitude float64
	VehicleID string
	LastSeen  time.Time
}

// VehiclePositionCache holds, per trip-id, the vehicle's last reported
// position, independent of whether that tick also produced a new
// stop-proximity arrival.
type VehiclePositionCache struct {
	mu      sync.RWMutex
	entries map[string]VehiclePosition
}

// NewVehiclePositionCache builds an empty cache.
func NewVehiclePositionCache() *VehiclePositionCache {
	return &VehiclePositionCache{entries: make(map[string]VehiclePosition)}
}

// Put records the latest known position for a trip.
func (c *VehiclePositionCache) Put(tripID string, p VehiclePosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tripID] = p
}

// Get returns the last-known position for a trip and whether it is
// currently trusted (within VehiclePositionTTL). The position itself is
// returned even when untrusted; it remains useful for display. An entry
// older than VehiclePositionRetention is removed and reported absent.
func (c *VehiclePositionCache) Get(tripID string, now time.Time) (VehiclePosition, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[tripID]
	if !ok {
		return VehiclePosition{}, false, false
	}
	if now.Sub(p.LastSeen) > VehiclePositionRetention {
		delete(c.entries, tripID)
		return VehiclePosition{}, false, false
	}
	trusted := now.Sub(p.LastSeen) <= VehiclePositionTTL
	return p, true, trusted
}
