package delyzer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"delyzer.dev/delyzer/feed"
	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/storage"
)

const (
	DefaultInterval     = 12 * time.Second
	DefaultLimit        = 100
	DefaultFetchTimeout = 10 * time.Second
)

type CollectorConfig struct {
	// Stations to poll, in order.
	StationIDs []int

	// Time between the start of two fetch cycles.
	Interval time.Duration

	// Max departures requested per station and cycle.
	Limit int

	// If set, only departures of this line number are kept.
	Line string

	// Delete all stored departures before the first cycle.
	Clear bool

	// Max duration of a single feed request.
	FetchTimeout time.Duration
}

// Summary of a fetch cycle.
type CycleStats struct {
	ID             uuid.UUID
	StartedAt      time.Time
	Stations       int
	FailedStations int
	Fetched        int
	Skipped        int
	Invalid        int
	Stored         int
}

// Periodically polls a feed for the departures at a set of stations,
// and stores those reported in real time.
type Collector struct {
	feed    feed.Client
	storage storage.Storage
	config  CollectorConfig

	// Clock used for observation timestamps.
	Now func() time.Time
}

func NewCollector(client feed.Client, s storage.Storage, config CollectorConfig) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	return &Collector{
		feed:    client,
		storage: s,
		config:  config,
		Now:     time.Now,
	}
}

func (c *Collector) Config() CollectorConfig {
	return c.config
}

// Determines the stations to poll. An explicit station takes
// precedence over a line; the line then only acts as a filter.
//
// catalog may be nil, in which case only an explicit station can be
// resolved, and it's accepted without checking.
func ResolveStations(catalog *Catalog, stationID int, line string) ([]int, error) {
	if stationID != 0 {
		if catalog != nil && !catalog.HasStation(stationID) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown station %d", stationID)}
		}
		return []int{stationID}, nil
	}

	if line != "" {
		if catalog == nil {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("stations of line %s", line),
				Err:    ErrNoCatalog,
			}
		}
		stations := catalog.StationsOnLine(line)
		if len(stations) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("no stations on line %s", line)}
		}
		return stations, nil
	}

	return nil, &ConfigurationError{Reason: "neither station nor line given"}
}

// Converts a feed entry to a departure observed at the given time.
// Missing delays count as punctual, and a missing planned time
// defaults to the time of observation.
func MapEntry(entry feed.Entry, observedAt time.Time) *model.Departure {
	d := &model.Departure{
		StationID:     entry.StationID,
		DestinationID: entry.DestinationID,
		Direction:     entry.Direction,
		DirectionFrom: entry.DirectionFrom,
		LineNumber:    entry.LineNumber,
		LineName:      entry.LineName,
		ObservedAt:    model.ObservationTime(observedAt),
	}

	if entry.Delay != nil {
		d.Delay = *entry.Delay
	}

	if entry.Planned != nil {
		d.PlannedDepartureTime = model.TimeOfDayOf(*entry.Planned)
	} else {
		d.PlannedDepartureTime = model.TimeOfDayOf(observedAt)
	}

	return d
}

// Runs a single fetch cycle over all stations. Failing stations are
// logged and skipped. Only returns an error if ctx is cancelled.
func (c *Collector) FetchCycle(ctx context.Context) (CycleStats, error) {
	stats := CycleStats{
		ID:        uuid.New(),
		StartedAt: c.Now(),
	}

	for _, stationID := range c.config.StationIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Stations++

		departures, err := c.fetchStation(ctx, stationID, &stats)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FailedStations++
			log.Printf("Warning: %v", err)
			continue
		}

		if len(departures) == 0 {
			continue
		}

		err = c.storage.WriteDepartures(departures)
		if err != nil {
			stats.FailedStations++
			log.Printf("Warning: %v", &StoreError{Op: fmt.Sprintf("write station %d", stationID), Err: err})
			continue
		}
		stats.Stored += len(departures)
	}

	return stats, nil
}

func (c *Collector) fetchStation(ctx context.Context, stationID int, stats *CycleStats) ([]*model.Departure, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	entries, err := c.feed.Departures(fetchCtx, stationID, c.config.Limit)
	if err != nil {
		return nil, &FeedFetchError{StationID: stationID, Err: err}
	}
	stats.Fetched += len(entries)

	observedAt := c.Now()
	departures := []*model.Departure{}
	for _, entry := range entries {
		if !entry.RealTime {
			stats.Skipped++
			continue
		}
		if c.config.Line != "" && entry.LineNumber != c.config.Line {
			stats.Skipped++
			continue
		}

		d := MapEntry(entry, observedAt)
		if err := d.Validate(); err != nil {
			stats.Invalid++
			log.Printf("Warning: %v", &RecordValidationError{Departure: d, Err: err})
			continue
		}

		departures = append(departures, d)
	}

	return departures, nil
}

// Runs fetch cycles until ctx is cancelled, the first one
// immediately. Cycles start at a fixed rate regardless of how long
// each takes; a cycle overrunning the interval delays the next one.
//
// Returns nil on cancellation.
func (c *Collector) Run(ctx context.Context) error {
	if c.config.Clear {
		if err := c.storage.ClearDepartures(); err != nil {
			return &StoreError{Op: "clear", Err: err}
		}
		log.Println("Cleared stored departures")
	}

	log.Printf(
		"Collecting from %d station(s) every %v (limit=%d, line=%q)",
		len(c.config.StationIDs), c.config.Interval, c.config.Limit, c.config.Line,
	)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		stats, err := c.FetchCycle(ctx)
		if err != nil {
			break
		}
		log.Printf(
			"Cycle %s: stations=%d failed=%d fetched=%d skipped=%d invalid=%d stored=%d (%v)",
			stats.ID, stats.Stations, stats.FailedStations, stats.Fetched,
			stats.Skipped, stats.Invalid, stats.Stored, c.Now().Sub(stats.StartedAt),
		)

		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Println("Collection stopped")
	return nil
}
