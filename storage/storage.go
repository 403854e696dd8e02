package storage

import (
	"errors"

	"delyzer.dev/delyzer/model"
)

var ErrNotFound = errors.New("not found")

// Append-only store of observed departures. There is a single writer
// (the collector); any number of readers may query concurrently.
type Storage interface {
	// Inserts departures, assigning each a fresh ID. The whole
	// batch is written atomically.
	WriteDepartures(departures []*model.Departure) error

	// Retrieves all departures matching the filter, in insertion
	// order.
	ListDepartures(filter DepartureFilter) ([]*model.Departure, error)

	// Retrieves a single departure. Returns ErrNotFound if no
	// departure has the given ID.
	GetDeparture(id int64) (*model.Departure, error)

	// Deletes all departures.
	ClearDepartures() error

	// Pings the underlying database, if any.
	Ping() error

	Close() error
}

// Filter for ListDepartures(). Zero values match everything.
type DepartureFilter struct {
	StationID  int
	LineNumber string
	Direction  string
}

func (f DepartureFilter) Matches(d *model.Departure) bool {
	if f.StationID != 0 && d.StationID != f.StationID {
		return false
	}
	if f.LineNumber != "" && d.LineNumber != f.LineNumber {
		return false
	}
	if f.Direction != "" && d.Direction != f.Direction {
		return false
	}
	return true
}
