package raptor

import "sort"

// transitSignature is the ordered tuple of (route-id, from-stop, to-stop)
// over an itinerary's transit legs, used to dedup walking-time variants
// of an otherwise identical ride.
type transitSignature string

func signatureOf(it Itinerary) transitSignature {
	sig := ""
	for _, l := range it.Legs {
		if l.IsTransit {
			sig += l.RouteID + "|" + l.FromStopID + "|" + l.ToStopID + ";"
		}
	}
	return transitSignature(sig)
}

// applyFilters runs the five reconstruction filters in order and
// returns at most MaxResults itineraries.
func applyFilters(itineraries []Itinerary) []Itinerary {
	itineraries = rejectSameRouteAdjacent(itineraries)
	itineraries = rejectOutOfBounds(itineraries)
	itineraries = dedupBySignature(itineraries)
	itineraries = pruneByThreshold(itineraries)

	sort.Slice(itineraries, func(i, j int) bool { return itineraries[i].TotalTimeSec < itineraries[j].TotalTimeSec })
	if len(itineraries) > MaxResults {
		itineraries = itineraries[:MaxResults]
	}
	return itineraries
}

// rejectSameRouteAdjacent drops itineraries with two consecutive transit
// legs on the same real route-id (filter 1).
func rejectSameRouteAdjacent(itineraries []Itinerary) []Itinerary {
	var out []Itinerary
	for _, it := range itineraries {
		reject := false
		lastRoute := ""
		lastWasTransit := false
		for _, l := range it.Legs {
			if l.IsTransit {
				if lastWasTransit && l.RouteID == lastRoute {
					reject = true
					break
				}
				lastRoute = l.RouteID
				lastWasTransit = true
			} else {
				lastWasTransit = false
			}
		}
		if !reject {
			out = append(out, it)
		}
	}
	return out
}

// rejectOutOfBounds drops itineraries with negative duration or duration
// exceeding the search window (filter 2).
func rejectOutOfBounds(itineraries []Itinerary) []Itinerary {
	var out []Itinerary
	for _, it := range itineraries {
		if it.TotalTimeSec < 0 || it.TotalTimeSec > SearchWindowSeconds {
			continue
		}
		out = append(out, it)
	}
	return out
}

// dedupBySignature keeps, among itineraries sharing the same transit
// signature, only the one with minimum total walking time (filter 3).
func dedupBySignature(itineraries []Itinerary) []Itinerary {
	best := make(map[transitSignature]Itinerary)
	order := make([]transitSignature, 0)
	for _, it := range itineraries {
		sig := signatureOf(it)
		existing, ok := best[sig]
		if !ok {
			best[sig] = it
			order = append(order, sig)
			continue
		}
		if it.TotalWalkSec < existing.TotalWalkSec {
			best[sig] = it
		}
	}
	out := make([]Itinerary, 0, len(order))
	for _, sig := range order {
		out = append(out, best[sig])
	}
	return out
}

// pruneByThreshold keeps a result iff its total time is within 60s of the
// fastest survivor, OR its transfer count equals the minimum observed
// (filter 4).
func pruneByThreshold(itineraries []Itinerary) []Itinerary {
	if len(itineraries) == 0 {
		return itineraries
	}
	fastest := itineraries[0].TotalTimeSec
	minTransfers := itineraries[0].Transfers
	for _, it := range itineraries {
		if it.TotalTimeSec < fastest {
			fastest = it.TotalTimeSec
		}
		if it.Transfers < minTransfers {
			minTransfers = it.Transfers
		}
	}

	var out []Itinerary
	for _, it := range itineraries {
		if it.TotalTimeSec-fastest <= 60 || it.Transfers == minTransfers {
			out = append(out, it)
		}
	}
	return out
}
