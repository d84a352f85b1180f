// Package synth is the Realistic-Time Synthesiser: it turns the
// Arrival Observer's raw observation log into a per-(trip, stop) adjusted
// stop-times table, replacing nominal scheduled times with data-driven
// ones. It never talks to the network; it is a pure offline/boot-time pass
// over the arrivals log and the Schedule Store's scheduled stop-times.
package synth

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/atanasr/transit-raptor/internal/arrivalslog"
	"github.com/atanasr/transit-raptor/internal/gtfs"
)

// IQRMultiplier is the permissive outlier-filter multiplier;
// 3.0 is part of the contract, not a tunable.
const IQRMultiplier = 3.0

// minSamplesForFilter is the group size below which the IQR filter is
// skipped and every sample is kept.
const minSamplesForFilter = 4

// tripStopKey identifies a (trip, stop) delay-sample group.
type tripStopKey struct {
	TripID string
	StopID string
}

// ScheduleSource is the slice of the Schedule Store the Synthesiser reads
// scheduled stop-times from, trip by trip.
type ScheduleSource interface {
	AllTrips(ctx context.Context) ([]gtfs.Trip, error)
	StopTimesForTripScheduled(ctx context.Context, tripID string) ([]gtfs.StopTime, error)
}

// Run executes the full pipeline: group observed delays by (trip, stop),
// filter outliers, take the per-group median, then walk every trip in
// stop-sequence order applying the representative delay and enforcing
// monotonicity. It returns the full realistic stop-times table, one row
// per input scheduled stop-time, none dropped.
func Run(ctx context.Context, store ScheduleSource, log *arrivalslog.Log) ([]gtfs.StopTime, error) {
	records, err := log.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read arrivals log")
	}

	delaysByKey := groupDelays(records)
	representative := make(map[tripStopKey]int, len(delaysByKey))
	for key, samples := range delaysByKey {
		representative[key] = representativeDelay(samples)
	}

	trips, err := store.AllTrips(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trips for synthesis")
	}

	var out []gtfs.StopTime
	for _, trip := range trips {
		scheduled, err := store.StopTimesForTripScheduled(ctx, trip.TripID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read scheduled stop_times for trip %s", trip.TripID)
		}
		out = append(out, synthesiseTrip(trip.TripID, scheduled, representative)...)
	}
	return out, nil
}

// groupDelays buckets every log record's delay-seconds by (trip, stop).
func groupDelays(records []arrivalslog.Record) map[tripStopKey][]int {
	out := make(map[tripStopKey][]int)
	for _, r := range records {
		key := tripStopKey{TripID: r.TripID, StopID: r.StopID}
		out[key] = append(out[key], r.DelaySeconds)
	}
	return out
}

// representativeDelay applies the IQR outlier filter (for groups with >= 4
// samples) and returns the integer median of the surviving samples.
func representativeDelay(samples []int) int {
	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)

	filtered := sorted
	if len(sorted) >= minSamplesForFilter {
		filtered = iqrFilter(sorted)
	}
	return medianInt(filtered)
}

// iqrFilter discards samples outside [Q1 - m*IQR, Q3 + m*IQR]. Q1 and Q3
// are read from fixed index positions of the sorted input, not
// interpolated. Filtering an already-filtered group yields the same
// group. Precondition: samples is sorted ascending.
func iqrFilter(samples []int) []int {
	n := len(samples)
	q1 := float64(samples[n/4])
	q3 := float64(samples[(3*n)/4])
	iqr := q3 - q1
	lower := q1 - IQRMultiplier*iqr
	upper := q3 + IQRMultiplier*iqr

	var out []int
	for _, s := range samples {
		f := float64(s)
		if f >= lower && f <= upper {
			out = append(out, s)
		}
	}
	return out
}

// medianInt returns the integer median. An empty slice (no surviving
// samples, or no observations for this group at all) yields 0.
func medianInt(sorted []int) int {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	// Even length averages the two middle values with integer
	// truncation: [-30,0,60,90,120,180] -> (60+90)/2 = 75.
	return (sorted[mid-1] + sorted[mid]) / 2
}

// synthesiseTrip walks one trip's scheduled stop-times in stop-sequence
// order, applying each stop's representative delay and enforcing
// monotonicity. Stop-times are assumed pre-sorted by
// stop-sequence by the caller (the Schedule Store orders them).
func synthesiseTrip(tripID string, scheduled []gtfs.StopTime, representative map[tripStopKey]int) []gtfs.StopTime {
	out := make([]gtfs.StopTime, 0, len(scheduled))
	prevRealistic := -1

	for _, st := range scheduled {
		schedSeconds, err := parseHMS(st.ArrivalTime)
		if err != nil {
			// Unparseable scheduled time: carry the row through unmodified
			// rather than dropping it; every input row gets exactly one
			// output row.
			out = append(out, st)
			continue
		}

		delay := representative[tripStopKey{TripID: tripID, StopID: st.StopID}]
		candidate := schedSeconds + delay
		if candidate < 0 {
			candidate = 0
		}
		if prevRealistic >= 0 && candidate <= prevRealistic {
			candidate = prevRealistic + 60
		}
		prevRealistic = candidate

		realistic := gtfs.StopTime{
			TripID:        st.TripID,
			StopID:        st.StopID,
			StopSequence:  st.StopSequence,
			ArrivalTime:   formatHMS(candidate),
			DepartureTime: formatHMS(candidate),
		}
		out = append(out, realistic)
	}
	return out
}

// parseHMS parses "HH:MM:SS" (HH possibly >= 24) into seconds since
// midnight of the service day.
func parseHMS(s string) (int, error) {
	if len(s) < 7 {
		return 0, errors.Errorf("malformed time %q", s)
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

// formatHMS is the inverse of parseHMS, rendering seconds-since-midnight
// (possibly >= 86400) back into "HH:MM:SS".
func formatHMS(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return pad2(h) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
