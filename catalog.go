package delyzer

import (
	"os"
	"sort"
	"strings"

	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/parse"
)

// Static reference data: station names and line memberships. Read
// only once loaded, so safe to share between goroutines.
type Catalog struct {
	stations map[int]*model.Station
	byLine   map[string][]int
}

// Builds a Catalog from parsed reference data. Line memberships are
// attached to the stations they reference.
func NewCatalog(stations []model.Station, lineStations map[string][]int) *Catalog {
	c := &Catalog{
		stations: map[int]*model.Station{},
		byLine:   map[string][]int{},
	}

	for _, st := range stations {
		s := st
		s.Lines = []string{}
		c.stations[s.Number] = &s
	}

	for line, numbers := range lineStations {
		c.byLine[line] = append([]int{}, numbers...)
		for _, number := range numbers {
			if s, ok := c.stations[number]; ok {
				s.Lines = append(s.Lines, line)
			}
		}
	}

	for _, s := range c.stations {
		sort.Strings(s.Lines)
	}

	return c
}

// Loads the station dataset at stationsPath and, unless linesPath is
// blank, the line membership dataset at linesPath.
//
// Failures are returned as *ReferenceLoadError.
func LoadCatalog(stationsPath string, linesPath string) (*Catalog, error) {
	f, err := os.Open(stationsPath)
	if err != nil {
		return nil, &ReferenceLoadError{Path: stationsPath, Err: err}
	}
	defer f.Close()

	stations, err := parse.ParseStations(f)
	if err != nil {
		return nil, &ReferenceLoadError{Path: stationsPath, Err: err}
	}

	lineStations := map[string][]int{}
	if linesPath != "" {
		lf, err := os.Open(linesPath)
		if err != nil {
			return nil, &ReferenceLoadError{Path: linesPath, Err: err}
		}
		defer lf.Close()

		lineStations, err = parse.ParseLineStations(lf, parse.DefaultStationNumberOffset)
		if err != nil {
			return nil, &ReferenceLoadError{Path: linesPath, Err: err}
		}
	}

	return NewCatalog(stations, lineStations), nil
}

// Display name of a station.
func (c *Catalog) Name(number int) (string, bool) {
	s, ok := c.stations[number]
	if !ok {
		return "", false
	}
	return s.Name, true
}

// Station number to display name, for all stations.
func (c *Catalog) Names() map[int]string {
	names := make(map[int]string, len(c.stations))
	for number, s := range c.stations {
		names[number] = s.Name
	}
	return names
}

func (c *Catalog) HasStation(number int) bool {
	_, ok := c.stations[number]
	return ok
}

// Numbers of all stations served by a line, ascending. Empty if the
// line is unknown.
func (c *Catalog) StationsOnLine(line string) []int {
	return append([]int{}, c.byLine[line]...)
}

// All stations, ordered by number.
func (c *Catalog) Stations() []model.Station {
	stations := make([]model.Station, 0, len(c.stations))
	for _, s := range c.stations {
		stations = append(stations, copyStation(s))
	}
	sort.Slice(stations, func(i, j int) bool {
		return stations[i].Number < stations[j].Number
	})
	return stations
}

// Stations with names containing substr (case-insensitive), ordered
// by name.
func (c *Catalog) Find(substr string) []model.Station {
	needle := strings.ToLower(substr)

	found := []model.Station{}
	for _, s := range c.stations {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			found = append(found, copyStation(s))
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Number < found[j].Number
	})
	return found
}

func copyStation(s *model.Station) model.Station {
	c := *s
	c.Lines = append([]string{}, s.Lines...)
	return c
}
