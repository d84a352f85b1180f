package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
)

// Parse reads a static schedule zip file and returns its parsed contents.
// Individual files are optional: a missing file is logged and its slice is
// left empty rather than failing the whole ingest. A malformed row within a
// present file is skipped with the read error swallowed; the parser never
// aborts mid-file over one bad row.
func Parse(zipPath string) (*Data, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open static feed zip: %w", err)
	}
	defer r.Close()

	data := &Data{}

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	if f, ok := files["routes.txt"]; ok {
		routes, err := parseRoutes(f)
		if err != nil {
			log.Printf("Warning: failed to parse routes.txt: %v", err)
		} else {
			data.Routes = routes
		}
	} else {
		log.Printf("Warning: routes.txt not present in static feed")
	}

	if f, ok := files["stops.txt"]; ok {
		stops, err := parseStops(f)
		if err != nil {
			log.Printf("Warning: failed to parse stops.txt: %v", err)
		} else {
			data.Stops = stops
		}
	} else {
		log.Printf("Warning: stops.txt not present in static feed")
	}

	if f, ok := files["trips.txt"]; ok {
		trips, err := parseTrips(f)
		if err != nil {
			log.Printf("Warning: failed to parse trips.txt: %v", err)
		} else {
			data.Trips = trips
		}
	} else {
		log.Printf("Warning: trips.txt not present in static feed")
	}

	if f, ok := files["stop_times.txt"]; ok {
		stopTimes, err := parseStopTimes(f)
		if err != nil {
			log.Printf("Warning: failed to parse stop_times.txt: %v", err)
		} else {
			data.StopTimes = stopTimes
		}
	} else {
		log.Printf("Warning: stop_times.txt not present in static feed")
	}

	if f, ok := files["calendar_dates.txt"]; ok {
		calendarDates, err := parseCalendarDates(f)
		if err != nil {
			log.Printf("Warning: failed to parse calendar_dates.txt: %v", err)
		} else {
			data.CalendarDates = calendarDates
		}
	} else {
		log.Printf("Warning: calendar_dates.txt not present in static feed")
	}

	log.Printf("Static feed parsed: %d routes, %d stops, %d trips, %d stop_times, %d calendar_dates",
		len(data.Routes), len(data.Stops), len(data.Trips), len(data.StopTimes), len(data.CalendarDates))

	return data, nil
}

func parseRoutes(f *zip.File) ([]Route, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := makeIndex(header)

	var routes []Route
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		routeID := getField(record, idx, "route_id")
		if routeID == "" {
			continue
		}

		routeType, _ := strconv.Atoi(getField(record, idx, "route_type"))
		routes = append(routes, Route{
			RouteID:        routeID,
			AgencyID:       getField(record, idx, "agency_id"),
			RouteShortName: getField(record, idx, "route_short_name"),
			RouteLongName:  getField(record, idx, "route_long_name"),
			RouteType:      routeType,
			RouteColor:     getField(record, idx, "route_color"),
			RouteTextColor: getField(record, idx, "route_text_color"),
		})
	}
	return routes, nil
}

func parseStops(f *zip.File) ([]Stop, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := makeIndex(header)

	var stops []Stop
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		stopID := getField(record, idx, "stop_id")
		latStr := getField(record, idx, "stop_lat")
		lonStr := getField(record, idx, "stop_lon")
		if stopID == "" || latStr == "" || lonStr == "" {
			continue
		}

		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			continue
		}
		locType, _ := strconv.Atoi(getField(record, idx, "location_type"))

		stops = append(stops, Stop{
			StopID:        stopID,
			StopCode:      getField(record, idx, "stop_code"),
			StopName:      getField(record, idx, "stop_name"),
			StopLat:       lat,
			StopLon:       lon,
			LocationType:  locType,
			ParentStation: getField(record, idx, "parent_station"),
		})
	}
	return stops, nil
}

func parseTrips(f *zip.File) ([]Trip, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := makeIndex(header)

	var trips []Trip
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		tripID := getField(record, idx, "trip_id")
		routeID := getField(record, idx, "route_id")
		if tripID == "" || routeID == "" {
			continue
		}

		directionID, _ := strconv.Atoi(getField(record, idx, "direction_id"))
		trips = append(trips, Trip{
			RouteID:      routeID,
			ServiceID:    getField(record, idx, "service_id"),
			TripID:       tripID,
			TripHeadsign: getField(record, idx, "trip_headsign"),
			DirectionID:  directionID,
		})
	}
	return trips, nil
}

func parseStopTimes(f *zip.File) ([]StopTime, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := makeIndex(header)

	var stopTimes []StopTime
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		tripID := getField(record, idx, "trip_id")
		stopID := getField(record, idx, "stop_id")
		seqStr := getField(record, idx, "stop_sequence")
		if tripID == "" || stopID == "" || seqStr == "" {
			continue
		}
		seq, err := strconv.Atoi(seqStr)
		if err != nil {
			continue
		}

		stopTimes = append(stopTimes, StopTime{
			TripID:        tripID,
			StopID:        stopID,
			StopSequence:  seq,
			ArrivalTime:   getField(record, idx, "arrival_time"),
			DepartureTime: getField(record, idx, "departure_time"),
		})
	}
	return stopTimes, nil
}

func parseCalendarDates(f *zip.File) ([]CalendarDate, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := makeIndex(header)

	var dates []CalendarDate
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		serviceID := getField(record, idx, "service_id")
		date := getField(record, idx, "date")
		if serviceID == "" || date == "" {
			continue
		}
		exceptionType, _ := strconv.Atoi(getField(record, idx, "exception_type"))

		dates = append(dates, CalendarDate{
			ServiceID:     serviceID,
			Date:          date,
			ExceptionType: exceptionType,
		})
	}
	return dates, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
