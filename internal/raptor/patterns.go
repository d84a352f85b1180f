package raptor

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/atanasr/transit-raptor/internal/timetable"
)

// patternTrip is one trip realising a pattern, its stop-times aligned
// 1:1 with the pattern's StopIDs slice.
type patternTrip struct {
	TripID string
	Times  []timetable.StopTime
}

// pattern is a virtual route: the group of trips sharing an identical
// ordered stop-id sequence. trips are sorted by their first
// stop's departure time.
type pattern struct {
	ID      string
	RouteID string
	StopIDs []string
	Trips   []patternTrip
}

// buildPatterns groups every trip in the timetable into patterns keyed by
// route-id + a hash of its stop-id sequence, so two trips on the same
// route but with different stopping patterns never share a bucket.
func buildPatterns(tt *timetable.Timetable) []*pattern {
	byVirtualID := make(map[string]*pattern)

	tripIDs := make([]string, 0, len(tt.StopTimesByTrip))
	for tripID := range tt.StopTimesByTrip {
		tripIDs = append(tripIDs, tripID)
	}
	sort.Strings(tripIDs)

	for _, tripID := range tripIDs {
		trip, ok := tt.Trips[tripID]
		if !ok {
			continue
		}
		times := tt.StopTimesByTrip[tripID]
		if len(times) < 2 {
			continue
		}
		stopIDs := make([]string, len(times))
		for i, t := range times {
			stopIDs[i] = t.StopID
		}
		virtualID := trip.RouteID + "#" + hashStopSequence(stopIDs)

		p, ok := byVirtualID[virtualID]
		if !ok {
			p = &pattern{ID: virtualID, RouteID: trip.RouteID, StopIDs: stopIDs}
			byVirtualID[virtualID] = p
		}
		p.Trips = append(p.Trips, patternTrip{TripID: tripID, Times: times})
	}

	patterns := make([]*pattern, 0, len(byVirtualID))
	for _, p := range byVirtualID {
		sort.Slice(p.Trips, func(i, j int) bool {
			return p.Trips[i].Times[0].DepartureSec < p.Trips[j].Times[0].DepartureSec
		})
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
	return patterns
}

// hashStopSequence hashes the ordered tuple of stop-ids into a short
// stable identifier, so trips with an identical stopping pattern (even
// across a coarse upstream route-id) collapse into one bucket.
func hashStopSequence(stopIDs []string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(stopIDs, "\x1f")))
	return strconv.FormatUint(h.Sum64(), 36)
}

// patternsByStop indexes, for every stop-id, the patterns that visit it
// and at which position.
type patternRef struct {
	pattern *pattern
	index   int
}

func indexPatternsByStop(patterns []*pattern) map[string][]patternRef {
	out := make(map[string][]patternRef)
	for _, p := range patterns {
		for i, stopID := range p.StopIDs {
			out[stopID] = append(out[stopID], patternRef{pattern: p, index: i})
		}
	}
	return out
}
