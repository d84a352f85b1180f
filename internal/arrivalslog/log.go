// Package arrivalslog is the Arrival Observer's append-only persistent
// log: a flat tabular file the Observer appends
// to on every first-sighting of a (trip, stop) and the Realistic-Time
// Synthesiser reads in full at synthesis time. Encoding is handled by
// gocsv's header-tagged struct marshalling rather than hand-rolled
// encoding/csv column bookkeeping.
package arrivalslog

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// Record is one row of the arrivals log.
// Timestamp and ScheduledArrival are kept as strings because the source
// format tolerates a trailing zone abbreviation that Go's time parser
// doesn't natively understand (e.g. "2024-03-14 08:05:00 CET"); callers
// that need a time.Time use ParseLogTimestamp.
type Record struct {
	Timestamp        string `csv:"timestamp"`
	VehicleID        string `csv:"vehicle_id"`
	TripID           string `csv:"trip_id"`
	RouteID          string `csv:"route_id"`
	StopID           string `csv:"stop_id"`
	StopName         string `csv:"stop_name"`
	ScheduledArrival string `csv:"scheduled_arrival"`
	ActualArrival    string `csv:"actual_arrival"`
	DelaySeconds     int    `csv:"delay_seconds"`
	DayOfWeek        int    `csv:"day_of_week"`
	Hour             int    `csv:"hour"`
}

// Log is a mutex-guarded append handle on the on-disk CSV file. One Log is
// shared by the Observer's polling goroutine; callers never need their own
// locking.
type Log struct {
	path string
	mu   sync.Mutex
}

// Open returns a handle on the arrivals log at path, creating an empty file
// (with no header yet; the header is written lazily on first Append) if it
// doesn't already exist.
func Open(path string) (*Log, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if ferr != nil {
			return nil, ferr
		}
		f.Close()
	}
	return &Log{path: path}, nil
}

// Append writes one record to the end of the log, writing the CSV header
// first if the file is still empty.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	needsHeader := false
	if fi, err := os.Stat(l.path); err != nil || fi.Size() == 0 {
		needsHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := []*Record{&rec}
	if needsHeader {
		return gocsv.MarshalFile(rows, f)
	}
	return gocsv.MarshalWithoutHeaders(rows, f)
}

// ReadAll loads the full log into memory, for the Synthesiser's boot-time
// (or on-demand) pass. A missing or empty file is not an error; it simply
// yields no observations, and the Synthesiser treats every representative
// delay as 0.
func (l *Log) ReadAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi, statErr := f.Stat(); statErr == nil && fi.Size() == 0 {
		return nil, nil
	}

	var records []*Record
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out, nil
}

// ParseLogTimestamp parses a log timestamp tolerating an optional trailing
// local-zone abbreviation (e.g. "CET", "CEST") the source format sometimes
// appends after the RFC3339-ish body.
func ParseLogTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Strip a trailing zone-abbreviation token and retry against the
	// layouts the Observer itself writes.
	fields := strings.Fields(s)
	bare := s
	if len(fields) > 2 {
		bare = strings.Join(fields[:2], " ")
	}
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, bare, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, strconv.ErrSyntax
}
