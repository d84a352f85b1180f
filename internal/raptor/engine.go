// Package raptor is the RAPTOR Engine: a pure function over the
// In-Memory Timetable that, given an origin coordinate, a destination
// coordinate, and a departure second, returns a ranked, filtered set of
// itineraries. It performs no I/O and holds no mutable state beyond the
// per-query working arrays it allocates and discards.
package raptor

import (
	"sort"

	"github.com/atanasr/transit-raptor/internal/geo"
	"github.com/atanasr/transit-raptor/internal/timetable"
)

// Engine wraps one immutable Timetable snapshot together with its
// precomputed route patterns, built once, reused across every query run
// against that snapshot.
type Engine struct {
	tt             *timetable.Timetable
	patterns       []*pattern
	patternsByStop map[string][]patternRef
	stopIDs        []string
	stopIndex      map[string]int
}

// NewEngine builds an Engine over a Timetable snapshot.
func NewEngine(tt *timetable.Timetable) *Engine {
	patterns := buildPatterns(tt)

	stopIDs := make([]string, 0, len(tt.Stops))
	for id := range tt.Stops {
		stopIDs = append(stopIDs, id)
	}
	sort.Strings(stopIDs)

	stopIndex := make(map[string]int, len(stopIDs))
	for i, id := range stopIDs {
		stopIndex[id] = i
	}

	return &Engine{
		tt:             tt,
		patterns:       patterns,
		patternsByStop: indexPatternsByStop(patterns),
		stopIDs:        stopIDs,
		stopIndex:      stopIndex,
	}
}

type parentKind int

const (
	parentNone parentKind = iota
	parentWalkFromOrigin
	parentTransfer
	parentTransit
)

type parentRecord struct {
	kind parentKind

	// Walk-from-origin and transfer.
	fromStop    int
	walkSeconds int
	walkDistM   float64

	// Transfer only: same-round predecessor.
	fromRound int

	// Transit only.
	tripID     string
	routeID    string
	boardStop  int
	boardSec   int
	alightStop int
	alightSec  int
	boardRound int
}

const infinity = 1 << 30

// labels is the per-query tau/parent working state: a |stops| x
// (maxRound+1) row-major table, per the design note favouring dense
// arrays over string-keyed maps in the inner loop.
type labels struct {
	tau    [][]int
	parent [][]parentRecord
}

func newLabels(numStops int) *labels {
	l := &labels{
		tau:    make([][]int, numStops),
		parent: make([][]parentRecord, numStops),
	}
	for i := 0; i < numStops; i++ {
		l.tau[i] = make([]int, maxRound+1)
		l.parent[i] = make([]parentRecord, maxRound+1)
		for k := range l.tau[i] {
			l.tau[i][k] = infinity
		}
	}
	return l
}

// Route runs the full round-based search and returns filtered,
// ranked itineraries for q.
func (e *Engine) Route(q Query) []Itinerary {
	origins := nearbyStopsCapped(e.tt, q.OriginLat, q.OriginLon, MaxWalkingDistanceM, maxCandidateStops)
	destinations := nearbyStopsCapped(e.tt, q.DestLat, q.DestLon, MaxWalkingDistanceM, maxCandidateStops)
	if len(origins) == 0 || len(destinations) == 0 {
		return nil
	}

	lbl := newLabels(len(e.stopIDs))

	for _, o := range origins {
		idx, ok := e.stopIndex[o.StopID]
		if !ok {
			continue
		}
		arrival := q.DepartureSec + o.WalkSeconds
		if arrival < lbl.tau[idx][0] {
			lbl.tau[idx][0] = arrival
			lbl.parent[idx][0] = parentRecord{kind: parentWalkFromOrigin, walkSeconds: o.WalkSeconds, walkDistM: o.DistanceM}
		}
	}

	for k := 1; k <= maxRound; k++ {
		marked := e.markedStops(lbl, k-1)
		if len(marked) == 0 {
			break
		}
		improved := e.transitPhase(lbl, k, marked, q.DepartureSec)
		e.transferPhase(lbl, k, improved)
	}

	return applyFilters(e.extractCandidates(lbl, destinations, q.DepartureSec))
}

// markedStops returns every stop index with a finite label at round k.
func (e *Engine) markedStops(lbl *labels, k int) []int {
	var marked []int
	for i := range e.stopIDs {
		if lbl.tau[i][k] < infinity {
			marked = append(marked, i)
		}
	}
	return marked
}

// transitPhase scans every pattern touching a marked stop, boards the
// single earliest boardable trip per pattern, and relaxes tau/parent for
// every downstream stop it improves. Returns the set of stop
// indices improved this phase, for the transfer phase to relax from.
func (e *Engine) transitPhase(lbl *labels, k int, marked []int, queryDeparture int) map[int]bool {
	markedSet := make(map[int]bool, len(marked))
	for _, idx := range marked {
		markedSet[idx] = true
	}

	touchedPatterns := make(map[*pattern]bool)
	for _, idx := range marked {
		for _, ref := range e.patternsByStop[e.stopIDs[idx]] {
			touchedPatterns[ref.pattern] = true
		}
	}

	improved := make(map[int]bool)

	for p := range touchedPatterns {
		boardTripIdx := -1
		boardIdx := -1
		boardDeparture := infinity

		for i, stopID := range p.StopIDs {
			stopIdx, ok := e.stopIndex[stopID]
			if !ok || !markedSet[stopIdx] {
				continue
			}
			earliestArrival := lbl.tau[stopIdx][k-1]
			if earliestArrival >= infinity {
				continue
			}
			minBoardTime := earliestArrival + TransferTimeSeconds

			tripIdx := e.earliestBoardableTrip(p, i, minBoardTime, queryDeparture)
			if tripIdx < 0 {
				continue
			}
			departure := e.normalize(p.Trips[tripIdx].Times[i].DepartureSec, p.Trips[tripIdx].Times[0].DepartureSec, queryDeparture)
			if departure < boardDeparture {
				boardDeparture = departure
				boardIdx = i
				boardTripIdx = tripIdx
			}
		}

		if boardTripIdx < 0 {
			continue
		}

		trip := p.Trips[boardTripIdx]
		boardStopIdx := e.stopIndex[p.StopIDs[boardIdx]]
		firstDeparture := trip.Times[0].DepartureSec

		for i := boardIdx + 1; i < len(p.StopIDs); i++ {
			alightStopIdx, ok := e.stopIndex[p.StopIDs[i]]
			if !ok {
				continue
			}
			arrival := e.normalize(trip.Times[i].ArrivalSec, firstDeparture, queryDeparture)
			if arrival > queryDeparture+SearchWindowSeconds {
				continue
			}
			if arrival < lbl.tau[alightStopIdx][k] {
				lbl.tau[alightStopIdx][k] = arrival
				lbl.parent[alightStopIdx][k] = parentRecord{
					kind:       parentTransit,
					fromStop:   boardStopIdx,
					tripID:     trip.TripID,
					routeID:    p.RouteID,
					boardStop:  boardStopIdx,
					boardSec:   boardDeparture,
					alightStop: alightStopIdx,
					alightSec:  arrival,
					boardRound: k - 1,
				}
				improved[alightStopIdx] = true
			}
		}
	}

	return improved
}

// earliestBoardableTrip finds, among a pattern's trips (sorted by
// first-stop departure), the earliest one whose departure at position i
// is >= minBoardTime, normalised to the query's time axis.
func (e *Engine) earliestBoardableTrip(p *pattern, i int, minBoardTime, queryDeparture int) int {
	for idx, trip := range p.Trips {
		departure := e.normalize(trip.Times[i].DepartureSec, trip.Times[0].DepartureSec, queryDeparture)
		if departure >= minBoardTime {
			return idx
		}
	}
	return -1
}

// normalize disambiguates past-midnight service times onto a continuous
// axis relative to the trip's own first departure, then relative to the
// query's departure time.
func (e *Engine) normalize(raw, firstDeparture, queryDeparture int) int {
	t := raw
	if firstDeparture-t > 12*3600 {
		t += 86400
	}
	if queryDeparture-t > 12*3600 {
		t += 86400
	}
	return t
}

// transferPhase relaxes the pedestrian-transfer graph from every stop
// improved in this round's transit phase. Transfer legs live in the same
// round as the preceding transit leg; they never increment the round
// counter.
func (e *Engine) transferPhase(lbl *labels, k int, improved map[int]bool) {
	for stopIdx := range improved {
		stopID := e.stopIDs[stopIdx]
		base := lbl.tau[stopIdx][k]
		for _, edge := range e.tt.Transfers[stopID] {
			neighbourIdx, ok := e.stopIndex[edge.ToStopID]
			if !ok {
				continue
			}
			candidate := base + edge.DurationS
			if candidate < lbl.tau[neighbourIdx][k] {
				lbl.tau[neighbourIdx][k] = candidate
				lbl.parent[neighbourIdx][k] = parentRecord{
					kind:        parentTransfer,
					fromStop:    stopIdx,
					fromRound:   k,
					walkSeconds: edge.DurationS,
					walkDistM:   edge.DistanceM,
				}
			}
		}
	}
}

// nearbyStopsCapped returns stops within maxDistance of (lat, lon),
// ascending by distance, capped at limit.
func nearbyStopsCapped(tt *timetable.Timetable, lat, lon, maxDistance float64, limit int) []NearbyStop {
	var candidates []NearbyStop
	for id, s := range tt.Stops {
		d := geo.Haversine(lat, lon, s.Lat, s.Lon)
		if d > maxDistance {
			continue
		}
		candidates = append(candidates, NearbyStop{
			StopID:      id,
			StopName:    s.Name,
			DistanceM:   d,
			WalkSeconds: geo.WalkSeconds(d, WalkingSpeedMPS),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DistanceM < candidates[j].DistanceM })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
