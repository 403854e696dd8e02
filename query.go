package delyzer

import (
	"errors"

	"delyzer.dev/delyzer/aggregate"
	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/storage"
)

// Read side: serves stored departures and the statistics derived
// from them. Views joining station names require a catalog.
type QueryService struct {
	storage storage.Storage
	catalog *Catalog
}

// catalog may be nil, which disables views that need station names.
func NewQueryService(s storage.Storage, catalog *Catalog) *QueryService {
	return &QueryService{
		storage: s,
		catalog: catalog,
	}
}

func (q *QueryService) list(filter storage.DepartureFilter) ([]*model.Departure, error) {
	departures, err := q.storage.ListDepartures(filter)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return departures, nil
}

func (q *QueryService) names() (map[int]string, error) {
	if q.catalog == nil {
		return nil, ErrNoCatalog
	}
	return q.catalog.Names(), nil
}

// Departures of a line and direction. Blank line means all
// departures.
func (q *QueryService) lineDepartures(line string, direction string) ([]*model.Departure, error) {
	if line == "" {
		return q.list(storage.DepartureFilter{})
	}

	departures, err := q.list(storage.DepartureFilter{LineNumber: line, Direction: direction})
	if err != nil {
		return nil, err
	}
	return aggregate.FilterByLine(departures, line, direction), nil
}

func (q *QueryService) Departures() ([]*model.Departure, error) {
	return q.list(storage.DepartureFilter{})
}

// Returns ErrNotFound if there's no such departure.
func (q *QueryService) Departure(id int64) (*model.Departure, error) {
	d, err := q.storage.GetDeparture(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return d, nil
}

func (q *QueryService) Lines() ([]model.Line, error) {
	departures, err := q.list(storage.DepartureFilter{})
	if err != nil {
		return nil, err
	}
	return aggregate.Lines(departures), nil
}

// Station number to name for all stations.
func (q *QueryService) Stations() (map[int]string, error) {
	return q.names()
}

// Mean delay per line and direction.
func (q *QueryService) LineDelays() ([]model.LineDelay, error) {
	departures, err := q.list(storage.DepartureFilter{})
	if err != nil {
		return nil, err
	}
	return aggregate.ByLineDelay(departures), nil
}

// Mean delay of a single line and direction.
func (q *QueryService) LineDelay(line string, direction string) ([]model.LineDelay, error) {
	departures, err := q.lineDepartures(line, direction)
	if err != nil {
		return nil, err
	}
	return aggregate.ByLineDelay(departures), nil
}

// Mean delay per 30 minute slot, optionally for a single line and
// direction.
func (q *QueryService) TimeDelays(line string, direction string) ([]model.TimeslotDelay, error) {
	departures, err := q.lineDepartures(line, direction)
	if err != nil {
		return nil, err
	}
	return aggregate.ByTimeBucket(departures), nil
}

// Mean delay per station, optionally for a single line and
// direction.
func (q *QueryService) StationDelays(line string, direction string) ([]model.StationDelay, error) {
	names, err := q.names()
	if err != nil {
		return nil, err
	}
	departures, err := q.lineDepartures(line, direction)
	if err != nil {
		return nil, err
	}
	return aggregate.ByStationDelay(departures, names), nil
}

// Delay risk per station, optionally for a single line and
// direction.
func (q *QueryService) StationRisks(line string, direction string) ([]model.StationDelay, error) {
	names, err := q.names()
	if err != nil {
		return nil, err
	}
	departures, err := q.lineDepartures(line, direction)
	if err != nil {
		return nil, err
	}
	return aggregate.RiskAtStation(departures, names), nil
}

// Delay risk at the station(s) with the given name.
func (q *QueryService) StationRisk(name string) ([]model.StationDelay, error) {
	rows, err := q.StationRisks("", "")
	if err != nil {
		return nil, err
	}
	return aggregate.StationRiskByName(rows, name), nil
}

// Delay risk per line and direction.
func (q *QueryService) LineRisks() ([]model.LineDelay, error) {
	departures, err := q.list(storage.DepartureFilter{})
	if err != nil {
		return nil, err
	}
	return aggregate.RiskOfLine(departures), nil
}

// Delay risk of a single line and direction.
func (q *QueryService) LineRisk(line string, direction string) ([]model.LineDelay, error) {
	departures, err := q.lineDepartures(line, direction)
	if err != nil {
		return nil, err
	}
	return aggregate.RiskOfLine(departures), nil
}

// Checks that the store is reachable.
func (q *QueryService) Ping() error {
	if err := q.storage.Ping(); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}
