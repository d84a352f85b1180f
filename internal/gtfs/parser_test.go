package gtfs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeTestZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "static.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_MissingFilesAreTolerated(t *testing.T) {
	path := writeTestZip(t, map[string]string{
		"routes.txt": "route_id,route_short_name,route_type\nR1,84,3\n",
	})
	data, err := Parse(path)
	if err != nil {
		t.Fatalf("expected no error for a zip missing optional files, got %v", err)
	}
	if len(data.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(data.Routes))
	}
	if len(data.Stops) != 0 {
		t.Errorf("expected an empty stops slice for a missing stops.txt, got %d", len(data.Stops))
	}
}

func TestParse_MalformedRowSkipped(t *testing.T) {
	path := writeTestZip(t, map[string]string{
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"S1,Good Stop,41.38,2.17\n" +
			"S2,Bad Stop,not-a-number,2.17\n" +
			"S3,Another Good Stop,41.39,2.18\n",
	})
	data, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Stops) != 2 {
		t.Fatalf("expected the malformed row to be skipped leaving 2 stops, got %d: %+v", len(data.Stops), data.Stops)
	}
}

func TestParse_RoutesParsed(t *testing.T) {
	path := writeTestZip(t, map[string]string{
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\nR1,84,Sants - Besòs,3\n",
	})
	data, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Routes) != 1 || data.Routes[0].RouteShortName != "84" || data.Routes[0].RouteType != 3 {
		t.Errorf("unexpected parsed route: %+v", data.Routes)
	}
}
