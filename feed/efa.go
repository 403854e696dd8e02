package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"delyzer.dev/delyzer/downloader"
)

const (
	DefaultEFAURL     = "https://www3.vvs.de/vvs/widget/XML_DM_REQUEST"
	DefaultEFATimeout = 10 * time.Second
	DefaultEFAMaxSize = 8 << 20
)

// Departure monitor (XML_DM_REQUEST) of an EFA journey planner, in
// its legacy JSON output format.
type EFA struct {
	BaseURL    string
	Downloader downloader.Downloader
	Timeout    time.Duration
	MaxSize    int

	// Timezone of the planned departure times. Defaults to
	// Europe/Berlin, falling back to UTC if unavailable.
	Location *time.Location
}

func NewEFA(baseURL string, d downloader.Downloader) *EFA {
	if baseURL == "" {
		baseURL = DefaultEFAURL
	}
	if d == nil {
		d = downloader.HTTP{}
	}

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}

	return &EFA{
		BaseURL:    baseURL,
		Downloader: d,
		Timeout:    DefaultEFATimeout,
		MaxSize:    DefaultEFAMaxSize,
		Location:   loc,
	}
}

// Request URL for the departures of a station.
func (e *EFA) URL(stationID int, limit int) string {
	params := url.Values{}
	params.Set("outputFormat", "JSON")
	params.Set("language", "de")
	params.Set("type_dm", "any")
	params.Set("name_dm", strconv.Itoa(stationID))
	params.Set("mode", "direct")
	params.Set("useRealtime", "1")
	params.Set("dmLineSelectionAll", "1")
	params.Set("limit", strconv.Itoa(limit))

	return e.BaseURL + "?" + params.Encode()
}

func (e *EFA) Departures(ctx context.Context, stationID int, limit int) ([]Entry, error) {
	body, err := e.Downloader.Get(ctx, e.URL(stationID, limit), map[string]string{
		"Accept": "application/json",
	}, downloader.GetOptions{
		Timeout: e.Timeout,
		MaxSize: e.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}

	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}

	entries, err := ParseEFA(body, stationID, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// EFA's legacy JSON encodes nearly all scalars as strings, but not
// consistently so.
type efaValue string

func (v *efaValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = efaValue(strings.TrimSpace(s))
		return nil
	}
	*v = efaValue(data)
	return nil
}

func (v efaValue) int() (int, bool) {
	i, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

type efaDateTime struct {
	Year   efaValue `json:"year"`
	Month  efaValue `json:"month"`
	Day    efaValue `json:"day"`
	Hour   efaValue `json:"hour"`
	Minute efaValue `json:"minute"`
}

type efaServingLine struct {
	Number        efaValue `json:"number"`
	Name          efaValue `json:"name"`
	Direction     efaValue `json:"direction"`
	DirectionFrom efaValue `json:"directionFrom"`
	DestID        efaValue `json:"destID"`
	Realtime      efaValue `json:"realtime"`
	Delay         efaValue `json:"delay"`
}

type efaDeparture struct {
	StopID      efaValue       `json:"stopID"`
	DateTime    *efaDateTime   `json:"dateTime"`
	ServingLine efaServingLine `json:"servingLine"`
}

type efaResponse struct {
	DepartureList json.RawMessage `json:"departureList"`
}

// Decodes a departure monitor response. stationID is used for
// departures lacking a stopID. Departures with an unparseable stopID
// or dateTime are logged and skipped.
//
// departureList is an array for multiple departures, but may also be
// a single departure object, an object wrapping the departure(s) in a
// "departure" field, null or absent.
func ParseEFA(data []byte, stationID int, loc *time.Location) ([]Entry, error) {
	resp := efaResponse{}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	departures, err := decodeDepartureList(resp.DepartureList)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(departures))
	for i, d := range departures {
		entry, err := d.entry(stationID, loc)
		if err != nil {
			log.Printf("Warning: station %d: departure %d: %v", stationID, i, err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func decodeDepartureList(raw json.RawMessage) ([]efaDeparture, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []efaDeparture{}, nil
	}

	switch raw[0] {
	case '[':
		departures := []efaDeparture{}
		if err := json.Unmarshal(raw, &departures); err != nil {
			return nil, fmt.Errorf("unmarshaling departureList: %w", err)
		}
		return departures, nil

	case '{':
		wrapper := struct {
			Departure json.RawMessage `json:"departure"`
		}{}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("unmarshaling departureList: %w", err)
		}
		if len(wrapper.Departure) > 0 {
			return decodeDepartureList(wrapper.Departure)
		}

		d := efaDeparture{}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling departureList: %w", err)
		}
		return []efaDeparture{d}, nil
	}

	return nil, fmt.Errorf("unexpected departureList: %.20s", string(raw))
}

func (d efaDeparture) entry(stationID int, loc *time.Location) (Entry, error) {
	entry := Entry{
		StationID:     stationID,
		Direction:     string(d.ServingLine.Direction),
		DirectionFrom: string(d.ServingLine.DirectionFrom),
		LineNumber:    string(d.ServingLine.Number),
		LineName:      string(d.ServingLine.Name),
		RealTime:      d.ServingLine.Realtime == "1" || d.ServingLine.Realtime == "true",
	}

	if d.StopID != "" {
		id, ok := d.StopID.int()
		if !ok {
			return Entry{}, fmt.Errorf("invalid stopID '%s'", d.StopID)
		}
		entry.StationID = id
	}

	if dest, ok := d.ServingLine.DestID.int(); ok {
		entry.DestinationID = dest
	}

	if delay, ok := d.ServingLine.Delay.int(); ok {
		entry.Delay = &delay
	}

	if d.DateTime != nil {
		planned, err := d.DateTime.time(loc)
		if err != nil {
			return Entry{}, err
		}
		entry.Planned = &planned
	}

	return entry, nil
}

func (dt *efaDateTime) time(loc *time.Location) (time.Time, error) {
	fields := []efaValue{dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute}
	values := make([]int, len(fields))
	for i, f := range fields {
		v, ok := f.int()
		if !ok {
			return time.Time{}, fmt.Errorf("invalid dateTime %+v", *dt)
		}
		values[i] = v
	}

	return time.Date(values[0], time.Month(values[1]), values[2], values[3], values[4], 0, 0, loc), nil
}
