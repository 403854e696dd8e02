package delyzer_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/testutil"
)

func TestCatalog(t *testing.T) {
	c := testutil.BuildCatalog(t)

	name, ok := c.Name(5006056)
	assert.True(t, ok)
	assert.Equal(t, "Stuttgart Stadtmitte", name)

	_, ok = c.Name(42)
	assert.False(t, ok)

	assert.True(t, c.HasStation(5000355))
	assert.False(t, c.HasStation(5009999))

	assert.Equal(t, []int{5000355, 5006056, 5006118}, c.StationsOnLine("S1"))
	assert.Equal(t, []int{5006056, 5006118}, c.StationsOnLine("S2"))
	assert.Equal(t, []int{}, c.StationsOnLine("S9"))

	assert.Equal(t, map[int]string{
		5000355: "Herrenberg",
		5006056: "Stuttgart Stadtmitte",
		5006118: "Stuttgart Hauptbahnhof (tief)",
		5006115: "Stuttgart Schwabstraße",
	}, c.Names())

	assert.Equal(t, []model.Station{
		{Number: 5000355, Name: "Herrenberg", Lines: []string{"S1"}},
		{Number: 5006056, Name: "Stuttgart Stadtmitte", Lines: []string{"S1", "S2"}},
		{Number: 5006115, Name: "Stuttgart Schwabstraße", Lines: []string{}},
		{Number: 5006118, Name: "Stuttgart Hauptbahnhof (tief)", Lines: []string{"S1", "S2"}},
	}, c.Stations())
}

func TestCatalogFind(t *testing.T) {
	c := testutil.BuildCatalog(t)

	found := c.Find("stuttgart")
	require.Equal(t, 3, len(found))
	assert.Equal(t, "Stuttgart Hauptbahnhof (tief)", found[0].Name)
	assert.Equal(t, "Stuttgart Schwabstraße", found[1].Name)
	assert.Equal(t, "Stuttgart Stadtmitte", found[2].Name)

	assert.Equal(t, []model.Station{}, c.Find("Esslingen"))
}

func TestCatalogStationsOnLineReturnsCopy(t *testing.T) {
	c := testutil.BuildCatalog(t)

	stations := c.StationsOnLine("S1")
	stations[0] = 1
	assert.Equal(t, []int{5000355, 5006056, 5006118}, c.StationsOnLine("S1"))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	stationsPath := filepath.Join(dir, "stations.csv")
	linesPath := filepath.Join(dir, "lines.csv")

	require.NoError(t, os.WriteFile(stationsPath, []byte(
		"Nummer,Name mit Ort\n5006056,Stuttgart Stadtmitte\n5000355,Herrenberg\n",
	), 0644))
	require.NoError(t, os.WriteFile(linesPath, []byte(
		"Nummer;Linien (EFA)\n6056;S1, S2\n355;S1\n",
	), 0644))

	c, err := delyzer.LoadCatalog(stationsPath, linesPath)
	require.NoError(t, err)
	assert.Equal(t, []int{5000355, 5006056}, c.StationsOnLine("S1"))

	// Without line data
	c, err = delyzer.LoadCatalog(stationsPath, "")
	require.NoError(t, err)
	assert.Equal(t, []int{}, c.StationsOnLine("S1"))
	assert.True(t, c.HasStation(5006056))
}

func TestLoadCatalogErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.csv")
	require.NoError(t, os.WriteFile(broken, []byte("Nummer,Name mit Ort\nnope,Nowhere\n"), 0644))

	for _, tc := range []struct {
		name     string
		stations string
		lines    string
		path     string
	}{
		{"missing_stations", filepath.Join(dir, "missing.csv"), "", filepath.Join(dir, "missing.csv")},
		{"malformed_stations", broken, "", broken},
		{"missing_lines", "", filepath.Join(dir, "missing_lines.csv"), filepath.Join(dir, "missing_lines.csv")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stations := tc.stations
			if stations == "" {
				stations = filepath.Join(dir, "ok.csv")
				require.NoError(t, os.WriteFile(stations, []byte("Nummer,Name mit Ort\n1,One\n"), 0644))
			}

			_, err := delyzer.LoadCatalog(stations, tc.lines)
			require.Error(t, err)

			var loadErr *delyzer.ReferenceLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tc.path, loadErr.Path)
		})
	}
}
