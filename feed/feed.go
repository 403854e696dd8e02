package feed

import (
	"context"
	"time"
)

// Source of upcoming departures at a station.
type Client interface {
	// Retrieves at most limit departures at the station.
	Departures(ctx context.Context, stationID int, limit int) ([]Entry, error)
}

// A departure as reported by a feed. Planned and Delay are nil when
// the feed doesn't provide them.
type Entry struct {
	StationID     int
	DestinationID int
	Direction     string
	DirectionFrom string
	LineNumber    string
	LineName      string
	Planned       *time.Time
	Delay         *int
	RealTime      bool
}

// Serves canned entries per station. Stations without entries yield
// an empty list, stations in Errors fail.
type Replay struct {
	Entries map[int][]Entry
	Errors  map[int]error

	// Number of Departures() calls per station.
	Calls map[int]int
}

func NewReplay(entries map[int][]Entry) *Replay {
	return &Replay{
		Entries: entries,
		Errors:  map[int]error{},
		Calls:   map[int]int{},
	}
}

func (r *Replay) Departures(ctx context.Context, stationID int, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.Calls == nil {
		r.Calls = map[int]int{}
	}
	r.Calls[stationID]++

	if err := r.Errors[stationID]; err != nil {
		return nil, err
	}

	entries := r.Entries[stationID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]Entry{}, entries...), nil
}
