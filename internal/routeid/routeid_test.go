package routeid

import (
	"context"
	"errors"
	"testing"

	"github.com/atanasr/transit-raptor/internal/gtfs"
)

func TestPrefix(t *testing.T) {
	cases := []struct {
		routeType int
		want      string
		ok        bool
	}{
		{0, "TM", true},
		{1, "M", true},
		{3, "A", true},
		{11, "TB", true},
		{2, "", false},
	}
	for _, c := range cases {
		got, ok := Prefix(c.routeType)
		if got != c.want || ok != c.ok {
			t.Errorf("Prefix(%d) = (%q, %v), want (%q, %v)", c.routeType, got, ok, c.want, c.ok)
		}
	}
}

func TestExternal(t *testing.T) {
	r := &gtfs.Route{RouteShortName: "84", RouteType: 3}
	got, ok := External(r)
	if !ok || got != "A84" {
		t.Errorf("External() = (%q, %v), want (A84, true)", got, ok)
	}

	if _, ok := External(nil); ok {
		t.Error("External(nil) should report false")
	}
	if _, ok := External(&gtfs.Route{RouteShortName: "", RouteType: 3}); ok {
		t.Error("External with empty short name should report false")
	}
}

type fakeRouteLookup struct {
	routes map[string]*gtfs.Route
	calls  int
}

func (f *fakeRouteLookup) RouteByID(ctx context.Context, routeID string) (*gtfs.Route, error) {
	f.calls++
	if r, ok := f.routes[routeID]; ok {
		return r, nil
	}
	return nil, nil
}

func TestTranslator_CachesLookups(t *testing.T) {
	lookup := &fakeRouteLookup{routes: map[string]*gtfs.Route{
		"R1": {RouteShortName: "84", RouteType: 3},
	}}
	tr := NewTranslator(lookup)

	got, ok := tr.Translate(context.Background(), "R1")
	if !ok || got != "A84" {
		t.Fatalf("Translate() = (%q, %v), want (A84, true)", got, ok)
	}

	tr.Translate(context.Background(), "R1")
	if lookup.calls != 1 {
		t.Errorf("expected a single underlying lookup due to caching, got %d", lookup.calls)
	}
}

func TestTranslator_UnknownRoute(t *testing.T) {
	lookup := &fakeRouteLookup{routes: map[string]*gtfs.Route{}}
	tr := NewTranslator(lookup)

	_, ok := tr.Translate(context.Background(), "missing")
	if ok {
		t.Error("expected false for an unknown route")
	}
}

type erroringLookup struct{}

func (erroringLookup) RouteByID(ctx context.Context, routeID string) (*gtfs.Route, error) {
	return nil, errors.New("boom")
}

func TestTranslator_LookupError(t *testing.T) {
	tr := NewTranslator(erroringLookup{})
	_, ok := tr.Translate(context.Background(), "R1")
	if ok {
		t.Error("expected false when the underlying lookup errors")
	}
}
