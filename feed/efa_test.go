package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delyzer.dev/delyzer/feed"
)

const efaTwoDepartures = `{
  "parameters": [],
  "departureList": [
    {
      "stopID": "5006056",
      "dateTime": {"year": "2023", "month": "6", "day": "12", "hour": "7", "minute": "42"},
      "servingLine": {
        "number": "S1", "name": "S-Bahn", "direction": "Herrenberg",
        "directionFrom": "Kirchheim (T)", "destID": "5000355",
        "realtime": "1", "delay": "3"
      }
    },
    {
      "stopID": 5006056,
      "dateTime": {"year": "2023", "month": "6", "day": "12", "hour": "7", "minute": "45"},
      "servingLine": {
        "number": "U14", "name": "Stadtbahn", "direction": "Heslach Vogelrain",
        "directionFrom": "Remseck", "destID": "5006390",
        "realtime": "0"
      }
    }
  ]
}`

func intPtr(i int) *int { return &i }

func TestParseEFA(t *testing.T) {
	entries, err := feed.ParseEFA([]byte(efaTwoDepartures), 1, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 2, len(entries))

	planned := time.Date(2023, 6, 12, 7, 42, 0, 0, time.UTC)
	assert.Equal(t, feed.Entry{
		StationID:     5006056,
		DestinationID: 5000355,
		Direction:     "Herrenberg",
		DirectionFrom: "Kirchheim (T)",
		LineNumber:    "S1",
		LineName:      "S-Bahn",
		Planned:       &planned,
		Delay:         intPtr(3),
		RealTime:      true,
	}, entries[0])

	// Delay absent and not real time
	assert.Nil(t, entries[1].Delay)
	assert.False(t, entries[1].RealTime)
	assert.Equal(t, "U14", entries[1].LineNumber)
	assert.Equal(t, 5006390, entries[1].DestinationID)
}

func TestParseEFADepartureListShapes(t *testing.T) {
	single := `{"stopID": "5006118", "servingLine": {"number": "S2", "realtime": "1", "delay": "0"}}`

	for _, tc := range []struct {
		name    string
		body    string
		lines   []string
		station int
	}{
		{"missing", `{"parameters": []}`, []string{}, 0},
		{"null", `{"departureList": null}`, []string{}, 0},
		{"empty_array", `{"departureList": []}`, []string{}, 0},
		{"single_object", `{"departureList": ` + single + `}`, []string{"S2"}, 5006118},
		{"wrapped_object", `{"departureList": {"departure": ` + single + `}}`, []string{"S2"}, 5006118},
		{"wrapped_array", `{"departureList": {"departure": [` + single + `,` + single + `]}}`, []string{"S2", "S2"}, 5006118},
	} {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := feed.ParseEFA([]byte(tc.body), 42, time.UTC)
			require.NoError(t, err)

			lines := []string{}
			for _, e := range entries {
				lines = append(lines, e.LineNumber)
				assert.Equal(t, tc.station, e.StationID)
				assert.Nil(t, e.Planned)
				require.NotNil(t, e.Delay)
				assert.Equal(t, 0, *e.Delay)
			}
			assert.Equal(t, tc.lines, lines)
		})
	}
}

func TestParseEFAStopIDFallback(t *testing.T) {
	entries, err := feed.ParseEFA([]byte(`{"departureList": [{"servingLine": {"number": "S3"}}]}`), 5006056, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 1, len(entries))
	assert.Equal(t, 5006056, entries[0].StationID)
	assert.Equal(t, 0, entries[0].DestinationID)
}

func TestParseEFAMalformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"departureList": "nope"}`,
		`{"departureList": 42}`,
	} {
		_, err := feed.ParseEFA([]byte(body), 1, time.UTC)
		assert.Error(t, err, body)
	}
}

func TestParseEFASkipsMalformedDepartures(t *testing.T) {
	body := `{"departureList": [
		{"stopID": "abc", "servingLine": {"number": "S1", "realtime": "1"}},
		{"stopID": "5006056", "dateTime": {"year": "2023", "month": "6", "day": "12", "hour": "7", "minute": "42"},
		 "servingLine": {"number": "S2", "realtime": "1", "delay": "3"}},
		{"dateTime": {"year": "2023", "month": "6", "day": "12", "hour": "", "minute": "50"},
		 "servingLine": {"number": "S3", "realtime": "1"}},
		{"dateTime": {"year": "2023", "month": "x"}, "servingLine": {"number": "S4"}}
	]}`

	entries, err := feed.ParseEFA([]byte(body), 5006056, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 1, len(entries))
	assert.Equal(t, "S2", entries[0].LineNumber)
	require.NotNil(t, entries[0].Delay)
	assert.Equal(t, 3, *entries[0].Delay)
	require.NotNil(t, entries[0].Planned)
	assert.Equal(t, time.Date(2023, 6, 12, 7, 42, 0, 0, time.UTC), *entries[0].Planned)
}

func TestEFADepartures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5006056", r.URL.Query().Get("name_dm"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "JSON", r.URL.Query().Get("outputFormat"))
		w.Write([]byte(efaTwoDepartures))
	}))
	defer server.Close()

	client := feed.NewEFA(server.URL, nil)
	client.Location = time.UTC

	entries, err := client.Departures(context.Background(), 5006056, 1)
	require.NoError(t, err)
	require.Equal(t, 1, len(entries))
	assert.Equal(t, "S1", entries[0].LineNumber)
}

func TestEFADeparturesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := feed.NewEFA(server.URL, nil).Departures(context.Background(), 5006056, 10)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	r := feed.NewReplay(map[int][]feed.Entry{
		1: {{LineNumber: "S1"}, {LineNumber: "S2"}, {LineNumber: "S3"}},
	})
	r.Errors[2] = assert.AnError

	entries, err := r.Departures(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []feed.Entry{{LineNumber: "S1"}, {LineNumber: "S2"}}, entries)

	entries, err = r.Departures(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []feed.Entry{}, entries)

	_, err = r.Departures(context.Background(), 2, 2)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, r.Calls)
}
