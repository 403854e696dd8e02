package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"
	"golang.org/x/text/encoding/charmap"

	"delyzer.dev/delyzer/model"
)

// Station numbers in the line dataset are short numbers. The feed
// identifies the same station by this offset plus the short number.
const DefaultStationNumberOffset = 5000000

type StationCSV struct {
	Number string `csv:"Nummer"`
	Name   string `csv:"Name mit Ort"`
}

type LineStationCSV struct {
	Number string `csv:"Nummer"`
	Lines  string `csv:"Linien (EFA)"`
}

// Parses the station dataset: comma separated UTF-8 with (at least)
// the columns Nummer and "Name mit Ort". Nummer holds the station ID
// as used by the departure feed.
func ParseStations(data io.Reader) ([]model.Station, error) {
	stationCsv := []*StationCSV{}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(bom.NewReader(data)), &stationCsv)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling stations csv")
	}

	seen := map[int]bool{}
	stations := []model.Station{}
	for i, st := range stationCsv {
		number, err := strconv.Atoi(strings.TrimSpace(st.Number))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing Nummer (row %d)", i+1)
		}
		if number <= 0 {
			return nil, fmt.Errorf("non-positive Nummer %d (row %d)", number, i+1)
		}
		if seen[number] {
			return nil, fmt.Errorf("repeated Nummer %d (row %d)", number, i+1)
		}
		seen[number] = true

		name := strings.TrimSpace(st.Name)
		if name == "" {
			return nil, fmt.Errorf("empty Name mit Ort for Nummer %d (row %d)", number, i+1)
		}

		stations = append(stations, model.Station{
			Number: number,
			Name:   name,
			Lines:  []string{},
		})
	}

	if len(stations) == 0 {
		return nil, fmt.Errorf("no stations")
	}

	return stations, nil
}

// Parses the line membership dataset: semicolon separated,
// Windows-1252 encoded, with the columns Nummer and "Linien (EFA)".
// Returns station numbers (with offset applied) per line number,
// sorted and without duplicates.
func ParseLineStations(data io.Reader, offset int) (map[string][]int, error) {
	reader := csv.NewReader(charmap.Windows1252.NewDecoder().Reader(bom.NewReader(data)))
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	lineCsv := []*LineStationCSV{}
	if err := gocsv.UnmarshalCSV(reader, &lineCsv); err != nil {
		return nil, errors.Wrap(err, "unmarshaling line stations csv")
	}

	members := map[string]map[int]bool{}
	for i, ls := range lineCsv {
		number, err := strconv.Atoi(strings.TrimSpace(ls.Number))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing Nummer (row %d)", i+1)
		}

		for _, line := range SplitLines(ls.Lines) {
			if members[line] == nil {
				members[line] = map[int]bool{}
			}
			members[line][offset+number] = true
		}
	}

	byLine := map[string][]int{}
	for line, stations := range members {
		numbers := make([]int, 0, len(stations))
		for number := range stations {
			numbers = append(numbers, number)
		}
		sort.Ints(numbers)
		byLine[line] = numbers
	}

	return byLine, nil
}

// Splits a line list such as "S1, S2 U5;42" into its line numbers.
func SplitLines(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == ' ' || r == '\t'
	})

	lines := []string{}
	seen := map[string]bool{}
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		lines = append(lines, f)
	}
	return lines
}
