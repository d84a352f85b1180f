// Package routeid translates an internal GTFS route-id to the external
// rider-facing id riders actually recognise.
package routeid

import (
	"context"
	"sync"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// Prefix is the authoritative route-type → rider-facing prefix mapping.
// Route type is the standardized numeric code: tram=0, metro=1, bus=3,
// trolleybus=11.
func Prefix(routeType int) (string, bool) {
	switch routeType {
	case 0:
		return "TM", true
	case 1:
		return "M", true
	case 3:
		return "A", true
	case 11:
		return "TB", true
	default:
		return "", false
	}
}

// External computes the rider-facing id for a route: prefix(type) +
// short-name, e.g. type 3 + "84" -> "A84". Absent a route or a short name,
// it returns ("", false); the caller must treat this as "no external id
// available", never as an error.
func External(r *gtfs.Route) (string, bool) {
	if r == nil || r.RouteShortName == "" {
		return "", false
	}
	prefix, ok := Prefix(r.RouteType)
	if !ok {
		return "", false
	}
	return prefix + r.RouteShortName, true
}

// Translator resolves internal route-ids to external ids, caching the
// underlying route lookups it performs against the Schedule Store. Safe
// for concurrent use by request handlers.
type Translator struct {
	store RouteLookup

	mu     sync.RWMutex
	cached map[string]string
}

// RouteLookup is the slice of the Schedule Store this service depends on.
type RouteLookup interface {
	RouteByID(ctx context.Context, routeID string) (*gtfs.Route, error)
}

// NewTranslator builds a Translator over a route lookup source.
func NewTranslator(store RouteLookup) *Translator {
	return &Translator{store: store, cached: make(map[string]string)}
}

// Translate returns the external id for an internal route-id, or ("",
// false) if the route is unknown or has no short name.
func (t *Translator) Translate(ctx context.Context, routeID string) (string, bool) {
	t.mu.RLock()
	ext, ok := t.cached[routeID]
	t.mu.RUnlock()
	if ok {
		return ext, ext != ""
	}

	ext = ""
	if r, err := t.store.RouteByID(ctx, routeID); err == nil && r != nil {
		ext, _ = External(r)
	}
	t.mu.Lock()
	t.cached[routeID] = ext
	t.mu.Unlock()
	return ext, ext != ""
}
