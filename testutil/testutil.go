package testutil

// Helpers and configuration for tests.

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/parse"
	"delyzer.dev/delyzer/storage"
)

// Environment variable holding a postgres connection string. Postgres
// backed tests are skipped unless set.
const PostgresEnv = "DELYZER_TEST_POSTGRES"

// Observation time used by Departure().
var ObservedAt = time.Date(2023, 6, 12, 7, 45, 30, 0, time.UTC)

func BuildStorage(t testing.TB, backend string) storage.Storage {
	var s storage.Storage
	var err error
	switch backend {
	case "memory":
		s = storage.NewMemoryStorage()
	case "sqlite":
		s, err = storage.NewSQLiteStorage()
		require.NoError(t, err)
	case "postgres":
		connStr := os.Getenv(PostgresEnv)
		if connStr == "" {
			t.Skipf("%s not set", PostgresEnv)
		}
		s, err = storage.NewPSQLStorage(connStr, true)
		require.NoError(t, err)
	}
	require.NotEqual(t, nil, s, "unknown backend %q", backend)

	t.Cleanup(func() { s.Close() })

	return s
}

// Builds a catalog from CSV rows, in the formats of the reference
// datasets. Without arguments, a small S-Bahn Stuttgart catalog is
// built.
func BuildCatalog(t testing.TB, files ...[]string) *delyzer.Catalog {
	if len(files) == 0 {
		files = [][]string{
			{
				"Nummer,Name mit Ort",
				"5000355,Herrenberg",
				"5006056,Stuttgart Stadtmitte",
				"5006118,Stuttgart Hauptbahnhof (tief)",
				"5006115,Stuttgart Schwabstraße",
			},
			{
				"Nummer;Name;Linien (EFA)",
				"355;Herrenberg;S1",
				"6056;Stadtmitte;S1, S2",
				"6118;Hauptbahnhof (tief);S1, S2",
			},
		}
	}

	stations, err := parse.ParseStations(strings.NewReader(strings.Join(files[0], "\n")))
	require.NoError(t, err)

	lineStations := map[string][]int{}
	if len(files) > 1 {
		lineStations, err = parse.ParseLineStations(
			strings.NewReader(strings.Join(files[1], "\n")),
			parse.DefaultStationNumberOffset,
		)
		require.NoError(t, err)
	}

	return delyzer.NewCatalog(stations, lineStations)
}

// A valid departure, observed at ObservedAt.
func Departure(station int, line string, direction string, delay int) *model.Departure {
	return &model.Departure{
		StationID:            station,
		DestinationID:        5000355,
		Direction:            direction,
		DirectionFrom:        "Kirchheim (T)",
		LineNumber:           line,
		LineName:             "S-Bahn",
		PlannedDepartureTime: model.NewTimeOfDay(7, 42, 0),
		Delay:                delay,
		ObservedAt:           ObservedAt,
	}
}

// Same as Departure(), planned at the given time of day.
func DepartureAt(station int, line string, direction string, delay int, planned string) *model.Departure {
	d := Departure(station, line, direction, delay)
	tod, err := model.ParseTimeOfDay(planned)
	if err != nil {
		panic(err)
	}
	d.PlannedDepartureTime = tod
	return d
}
