package raptor

import "github.com/atanasr/transit-raptor/internal/timetable"

// Tunable constants fixed by contract, not configuration.
const (
	MaxWalkingDistanceM = 500.0
	WalkingSpeedMPS     = 1.4
	MaxResults          = 5
	MaxTransfers        = 3
	SearchWindowSeconds = 4 * 3600
	TransferTimeSeconds = 180
	maxCandidateStops   = 15
)

// maxRound is the highest round index reached: MAX_TRANSFERS+1.
const maxRound = MaxTransfers + 1

// Query is one routing request.
type Query struct {
	OriginLat, OriginLon float64
	DestLat, DestLon     float64
	DepartureSec         int // seconds since midnight of the query's service day
}

// Leg is one segment of an itinerary: either a walk or a transit ride.
type Leg struct {
	IsTransit bool

	FromStopID   string
	FromStopName string
	ToStopID     string
	ToStopName   string

	// Walk legs only.
	DistanceM float64

	// Transit legs only.
	TripID       string
	RouteID      string
	DepartureSec int
	ArrivalSec   int

	DurationSec int
}

// Itinerary is one reconstructed, filtered result.
type Itinerary struct {
	Legs         []Leg
	DepartureSec int
	ArrivalSec   int
	TotalTimeSec int
	Transfers    int
	TotalWalkSec int
}

// NearbyStop is one candidate stop near a query coordinate.
type NearbyStop struct {
	StopID      string
	StopName    string
	DistanceM   float64
	WalkSeconds int
}

// NearbyStops returns every stop within maxDistance of (lat, lon), sorted
// ascending by distance and capped at the 15 closest. Exported for the
// Query Orchestrator's nearby-stops
// surface, which reuses this exact search.
func NearbyStops(tt *timetable.Timetable, lat, lon, maxDistance float64) []NearbyStop {
	return nearbyStopsCapped(tt, lat, lon, maxDistance, maxCandidateStops)
}
