package raptor

import "sort"

// extractCandidates walks every destination candidate's finite labels and
// reconstructs one itinerary per (stop, round).
func (e *Engine) extractCandidates(lbl *labels, destinations []NearbyStop, queryDeparture int) []Itinerary {
	type candidate struct {
		stopIdx int
		round   int
		arrival int
		walkOut NearbyStop
	}

	var candidates []candidate
	for _, dest := range destinations {
		idx, ok := e.stopIndex[dest.StopID]
		if !ok {
			continue
		}
		for k := 0; k <= maxRound; k++ {
			arrival := lbl.tau[idx][k]
			if arrival >= infinity {
				continue
			}
			total := arrival + dest.WalkSeconds
			if total > queryDeparture+SearchWindowSeconds {
				continue
			}
			candidates = append(candidates, candidate{stopIdx: idx, round: k, arrival: total, walkOut: dest})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].arrival < candidates[j].arrival })

	itineraries := make([]Itinerary, 0, len(candidates))
	for _, c := range candidates {
		legs := e.reconstructLegs(lbl, c.stopIdx, c.round)
		legs = append(legs, Leg{
			IsTransit:    false,
			FromStopID:   e.stopIDs[c.stopIdx],
			FromStopName: e.tt.Stops[e.stopIDs[c.stopIdx]].Name,
			ToStopID:     "",
			DistanceM:    c.walkOut.DistanceM,
			DurationSec:  c.walkOut.WalkSeconds,
		})
		legs = mergeConsecutiveWalks(legs)

		it := summarize(legs, queryDeparture)
		itineraries = append(itineraries, it)
	}
	return itineraries
}

// reconstructLegs walks parent pointers backward from (stopIdx, round)
// until a walk-from-origin record terminates the chain, building legs in
// forward (departure) order.
func (e *Engine) reconstructLegs(lbl *labels, stopIdx, round int) []Leg {
	var reversed []Leg
	curStop, curRound := stopIdx, round

	for {
		p := lbl.parent[curStop][curRound]
		switch p.kind {
		case parentWalkFromOrigin:
			reversed = append(reversed, Leg{
				IsTransit:   false,
				FromStopID:  "",
				ToStopID:    e.stopIDs[curStop],
				ToStopName:  e.tt.Stops[e.stopIDs[curStop]].Name,
				DistanceM:   p.walkDistM,
				DurationSec: p.walkSeconds,
			})
			curStop, curRound = -1, -1
		case parentTransfer:
			reversed = append(reversed, Leg{
				IsTransit:    false,
				FromStopID:   e.stopIDs[p.fromStop],
				FromStopName: e.tt.Stops[e.stopIDs[p.fromStop]].Name,
				ToStopID:     e.stopIDs[curStop],
				ToStopName:   e.tt.Stops[e.stopIDs[curStop]].Name,
				DistanceM:    p.walkDistM,
				DurationSec:  p.walkSeconds,
			})
			curStop, curRound = p.fromStop, p.fromRound
		case parentTransit:
			reversed = append(reversed, Leg{
				IsTransit:    true,
				FromStopID:   e.stopIDs[p.boardStop],
				FromStopName: e.tt.Stops[e.stopIDs[p.boardStop]].Name,
				ToStopID:     e.stopIDs[p.alightStop],
				ToStopName:   e.tt.Stops[e.stopIDs[p.alightStop]].Name,
				TripID:       p.tripID,
				RouteID:      p.routeID,
				DepartureSec: p.boardSec,
				ArrivalSec:   p.alightSec,
				DurationSec:  p.alightSec - p.boardSec,
			})
			curStop, curRound = p.fromStop, p.boardRound
		default:
			curStop, curRound = -1, -1
		}
		if curStop < 0 {
			break
		}
	}

	legs := make([]Leg, len(reversed))
	for i, l := range reversed {
		legs[len(reversed)-1-i] = l
	}
	return legs
}

// mergeConsecutiveWalks collapses adjacent walk legs into one, summing
// distance and duration and keeping the first walk's origin and the last
// walk's terminus.
func mergeConsecutiveWalks(legs []Leg) []Leg {
	var out []Leg
	for _, l := range legs {
		if !l.IsTransit && len(out) > 0 && !out[len(out)-1].IsTransit {
			prev := out[len(out)-1]
			prev.ToStopID = l.ToStopID
			prev.ToStopName = l.ToStopName
			prev.DistanceM += l.DistanceM
			prev.DurationSec += l.DurationSec
			out[len(out)-1] = prev
			continue
		}
		out = append(out, l)
	}
	return out
}

// summarize computes the aggregate fields of an itinerary from its legs.
func summarize(legs []Leg, queryDeparture int) Itinerary {
	it := Itinerary{Legs: legs, DepartureSec: queryDeparture}
	transfers := -1 // the boarding of the first transit leg is not a transfer
	totalWalk := 0
	lastArrival := queryDeparture

	for _, l := range legs {
		if l.IsTransit {
			transfers++
			lastArrival = l.ArrivalSec
		} else {
			totalWalk += l.DurationSec
			lastArrival += l.DurationSec
		}
	}
	if transfers < 0 {
		transfers = 0
	}

	it.ArrivalSec = lastArrival
	it.TotalTimeSec = lastArrival - queryDeparture
	it.Transfers = transfers
	it.TotalWalkSec = totalWalk
	return it
}
