// Package delaymetrics is Delay Health Metrics: an online,
// incrementally-updated per-route Welford mean/variance of observed
// delay-seconds, kept purely for operational visibility. It never feeds
// back into the Synthesiser or the RAPTOR Engine; the Synthesiser's
// median-based representative delay (internal/synth) is deliberately a
// separate, unrelated computation.
package delaymetrics

import (
	"context"
	"math"
	"time"

	"github.com/atanasr/transit-raptor/internal/arrivalslog"
	"github.com/atanasr/transit-raptor/internal/store"
)

// WelfordState holds running statistics using Welford's online algorithm,
// letting mean/variance be updated in O(1) time and space per observation.
type WelfordState struct {
	Count int
	Mean  float64
	M2    float64
}

// NewWelfordStateFrom reconstructs a WelfordState from previously
// persisted summary statistics, so updates can resume across restarts.
func NewWelfordStateFrom(mean, m2 float64, count int) *WelfordState {
	return &WelfordState{Count: count, Mean: mean, M2: m2}
}

// Update folds in one new observation.
func (w *WelfordState) Update(value float64) {
	w.Count++
	delta := value - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := value - w.Mean
	w.M2 += delta * delta2
}

// Variance returns the population variance. Zero below 2 observations.
func (w *WelfordState) Variance() float64 {
	if w.Count < 2 {
		return 0
	}
	return w.M2 / float64(w.Count)
}

// StdDev returns the population standard deviation.
func (w *WelfordState) StdDev() float64 {
	return math.Sqrt(w.Variance())
}

// Baseline is a route's current delay-health snapshot.
type Baseline struct {
	RouteID      string
	SampleCount  int
	MeanDelaySec float64
	StdDevSec    float64
	UpdatedAt    time.Time
}

// BaselineStore is the slice of the Schedule Store route-delay baselines
// are persisted through.
type BaselineStore interface {
	RouteBaseline(ctx context.Context, routeID string) (*store.RouteDelayBaseline, error)
	SaveRouteBaseline(ctx context.Context, b store.RouteDelayBaseline) error
	AllRouteBaselines(ctx context.Context) ([]store.RouteDelayBaseline, error)
}

// Tracker folds new arrival observations into per-route baselines.
type Tracker struct {
	store BaselineStore
}

// NewTracker builds a Tracker over a baseline store.
func NewTracker(store BaselineStore) *Tracker {
	return &Tracker{store: store}
}

// Observe folds one arrivals-log record's delay into its route's running
// baseline, read-modify-write against the store.
func (t *Tracker) Observe(ctx context.Context, rec arrivalslog.Record, now time.Time) error {
	if rec.RouteID == "" {
		return nil
	}
	existing, err := t.store.RouteBaseline(ctx, rec.RouteID)
	if err != nil {
		return err
	}

	var w *WelfordState
	if existing != nil {
		w = NewWelfordStateFrom(existing.MeanDelaySec, existing.M2, existing.SampleCount)
	} else {
		w = &WelfordState{}
	}
	w.Update(float64(rec.DelaySeconds))

	return t.store.SaveRouteBaseline(ctx, store.RouteDelayBaseline{
		RouteID:      rec.RouteID,
		SampleCount:  w.Count,
		MeanDelaySec: w.Mean,
		M2:           w.M2,
		UpdatedAt:    now.Format(time.RFC3339),
	})
}

// Snapshot returns every route's current baseline as a rider/operator
// facing view, for the route-health endpoint.
func (t *Tracker) Snapshot(ctx context.Context) ([]Baseline, error) {
	rows, err := t.store.AllRouteBaselines(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Baseline, 0, len(rows))
	for _, r := range rows {
		w := NewWelfordStateFrom(r.MeanDelaySec, r.M2, r.SampleCount)
		updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
		out = append(out, Baseline{
			RouteID:      r.RouteID,
			SampleCount:  r.SampleCount,
			MeanDelaySec: r.MeanDelaySec,
			StdDevSec:    w.StdDev(),
			UpdatedAt:    updatedAt,
		})
	}
	return out, nil
}
