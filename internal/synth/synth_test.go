package synth

import (
	"testing"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

func TestMedianInt(t *testing.T) {
	cases := []struct {
		samples []int
		want    int
	}{
		{nil, 0},
		{[]int{5}, 5},
		{[]int{-30, 0, 60, 90, 120, 180}, 75},
		{[]int{10, 20, 30}, 20},
	}
	for _, c := range cases {
		if got := medianInt(c.samples); got != c.want {
			t.Errorf("medianInt(%v) = %d, want %d", c.samples, got, c.want)
		}
	}
}

func TestIQRFilter_SkippedBelowThreshold(t *testing.T) {
	samples := []int{0, 10, 20}
	if len(samples) >= minSamplesForFilter {
		t.Fatal("test setup invalid: sample group must be below the filter threshold")
	}
	got := representativeDelay(samples)
	if got != 10 {
		t.Errorf("expected unfiltered median 10, got %d", got)
	}
}

func TestRepresentativeDelay_LiteralScenario(t *testing.T) {
	samples := []int{-30, 0, 60, 90, 120, 180, 3600}
	got := representativeDelay(samples)
	if got != 75 {
		t.Errorf("expected representative delay 75 (median of the outlier-filtered group), got %d", got)
	}
}

func TestSynthesiseTrip_LiteralScenario(t *testing.T) {
	scheduled := []gtfs.StopTime{
		{TripID: "T", StopID: "S", StopSequence: 1, ArrivalTime: "12:00:00"},
	}
	representative := map[tripStopKey]int{{TripID: "T", StopID: "S"}: 75}
	out := synthesiseTrip("T", scheduled, representative)
	if out[0].ArrivalTime != "12:01:15" {
		t.Errorf("expected realistic arrival 12:01:15, got %s", out[0].ArrivalTime)
	}
}

func TestSynthesiseTrip_MonotonicityLiteralScenario(t *testing.T) {
	scheduled := []gtfs.StopTime{
		{TripID: "T", StopID: "S1", StopSequence: 1, ArrivalTime: "10:00:00"},
		{TripID: "T", StopID: "S2", StopSequence: 2, ArrivalTime: "10:01:00"},
		{TripID: "T", StopID: "S3", StopSequence: 3, ArrivalTime: "10:02:00"},
	}
	representative := map[tripStopKey]int{
		{TripID: "T", StopID: "S1"}: 0,
		{TripID: "T", StopID: "S2"}: 120,
		{TripID: "T", StopID: "S3"}: -60,
	}
	out := synthesiseTrip("T", scheduled, representative)
	want := []string{"10:00:00", "10:03:00", "10:04:00"}
	for i, w := range want {
		if out[i].ArrivalTime != w {
			t.Errorf("stop %d: expected %s, got %s", i, w, out[i].ArrivalTime)
		}
	}
}

func TestIQRFilter_DropsOutlier(t *testing.T) {
	// A large positive outlier among four otherwise tight samples.
	samples := []int{10, 10, 20, 20, 4000}
	got := iqrFilter(samples)
	for _, v := range got {
		if v == 4000 {
			t.Errorf("expected the 4000s outlier to be dropped, survivors: %v", got)
		}
	}
}

func TestSynthesiseTrip_EnforcesMonotonicity(t *testing.T) {
	scheduled := []gtfs.StopTime{
		{TripID: "t1", StopID: "s1", StopSequence: 1, ArrivalTime: "08:00:00"},
		{TripID: "t1", StopID: "s2", StopSequence: 2, ArrivalTime: "08:01:00"},
	}
	// s2's representative delay would otherwise push it earlier than s1.
	representative := map[tripStopKey]int{
		{TripID: "t1", StopID: "s1"}: 300,
		{TripID: "t1", StopID: "s2"}: 0,
	}
	out := synthesiseTrip("t1", scheduled, representative)
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	first, err := parseHMS(out[0].ArrivalTime)
	if err != nil {
		t.Fatal(err)
	}
	second, err := parseHMS(out[1].ArrivalTime)
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Errorf("expected strictly increasing realistic times, got %d then %d", first, second)
	}
}

func TestSynthesiseTrip_NeverDropsRows(t *testing.T) {
	scheduled := []gtfs.StopTime{
		{TripID: "t1", StopID: "s1", StopSequence: 1, ArrivalTime: "08:00:00"},
		{TripID: "t1", StopID: "s2", StopSequence: 2, ArrivalTime: "bad-time"},
		{TripID: "t1", StopID: "s3", StopSequence: 3, ArrivalTime: "08:05:00"},
	}
	out := synthesiseTrip("t1", scheduled, nil)
	if len(out) != len(scheduled) {
		t.Fatalf("expected every input row to produce an output row, got %d want %d", len(out), len(scheduled))
	}
}

func TestFormatHMS_RoundTrip(t *testing.T) {
	got := formatHMS(90*3600 + 5*60 + 9) // 90:05:09, an after-midnight rollover time
	if got != "90:05:09" {
		t.Errorf("formatHMS rollover = %q, want 90:05:09", got)
	}
	sec, err := parseHMS(got)
	if err != nil {
		t.Fatal(err)
	}
	if sec != 90*3600+5*60+9 {
		t.Errorf("round trip mismatch: got %d seconds", sec)
	}
}
