// Package gtfs parses the static transit schedule feed (a zip of delimited
// tabular files with header rows) into typed in-memory slices, ready for a
// store to index. It never talks to a database and never decides which
// service day is active; that is the Schedule Store's job.
package gtfs

// Route is a line of service: a fixed identifier, display names, and a type
// code. Route type is authoritative: tram=0, metro=1, bus=3, trolleybus=11.
type Route struct {
	RouteID        string
	AgencyID       string
	RouteShortName string
	RouteLongName  string
	RouteType      int
	RouteColor     string
	RouteTextColor string
}

// Stop is a fixed geographic point riders board or alight at.
type Stop struct {
	StopID        string
	StopCode      string
	StopName      string
	StopLat       float64
	StopLon       float64
	LocationType  int
	ParentStation string
}

// Trip is one scheduled realisation of a route on a service day.
type Trip struct {
	RouteID      string
	ServiceID    string
	TripID       string
	TripHeadsign string
	DirectionID  int
}

// StopTime ties a trip to a stop at a sequence position, with scheduled
// arrival/departure as "HH:MM:SS" of the service day; HH >= 24 denotes
// after-midnight operation of the preceding service day.
type StopTime struct {
	TripID        string
	StopID        string
	StopSequence  int
	ArrivalTime   string
	DepartureTime string
}

// StopTimeAtStop is a single upcoming-arrival candidate at a stop, joined
// against its trip's route for the Stop Arrivals Service.
type StopTimeAtStop struct {
	TripID        string
	RouteID       string
	StopSequence  int
	ArrivalTime   string
	DepartureTime string
	ArrivalSec    int
}

// CalendarDate is a service-date exception. Only ExceptionType == 1
// ("added") is meaningful to this system; type 2 ("removed") rows are
// parsed but the Schedule Store discards them, honouring removal by
// absence rather than by negative bookkeeping.
type CalendarDate struct {
	ServiceID     string
	Date          string // YYYYMMDD
	ExceptionType int
}

// Data is the full parsed contents of one static feed.
type Data struct {
	Routes        []Route
	Stops         []Stop
	Trips         []Trip
	StopTimes     []StopTime
	CalendarDates []CalendarDate
}
