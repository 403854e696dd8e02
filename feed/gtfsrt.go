package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"delyzer.dev/delyzer/downloader"
)

// GTFS-Realtime TripUpdates feed. Stop IDs must be the numeric
// station IDs.
//
// The whole feed is downloaded for every station, so Downloader
// should cache (e.g. a MemoryDownloader with CacheTTL shorter than the
// collection interval).
type GTFSRT struct {
	URL        string
	Headers    map[string]string
	Downloader downloader.Downloader
	Timeout    time.Duration
	MaxSize    int
	CacheTTL   time.Duration

	// Timezone of the planned departure times. Defaults to UTC.
	Location *time.Location
}

func NewGTFSRT(url string, headers map[string]string, d downloader.Downloader) *GTFSRT {
	if d == nil {
		d = downloader.NewMemoryDownloader()
	}
	return &GTFSRT{
		URL:        url,
		Headers:    headers,
		Downloader: d,
		Timeout:    DefaultEFATimeout,
		MaxSize:    64 << 20,
		CacheTTL:   5 * time.Second,
		Location:   time.UTC,
	}
}

func (g *GTFSRT) Departures(ctx context.Context, stationID int, limit int) ([]Entry, error) {
	body, err := g.Downloader.Get(ctx, g.URL, g.Headers, downloader.GetOptions{
		Timeout:  g.Timeout,
		MaxSize:  g.MaxSize,
		Cache:    g.CacheTTL > 0,
		CacheTTL: g.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}

	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}

	entries, err := ParseTripUpdates(body, stationID, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Extracts the departures at a station from a TripUpdates feed.
//
// Route ID maps to line number, direction ID to direction and the
// trip's last stop to destination. Delays are truncated to whole
// minutes. Stop time updates without real time data are reported
// with RealTime false. Skipped stops and canceled trips are left out.
func ParseTripUpdates(data []byte, stationID int, loc *time.Location) ([]Entry, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()

	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %s not supported", version)
	}

	if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
		return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
	}

	stopID := strconv.Itoa(stationID)
	entries := []Entry{}

	for _, entity := range f.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}

		trip := tu.GetTrip()
		if trip == nil {
			return nil, fmt.Errorf("trip_update %s missing trip", entity.GetId())
		}

		switch trip.GetScheduleRelationship() {
		case gtfsproto.TripDescriptor_SCHEDULED, gtfsproto.TripDescriptor_ADDED:
		default:
			continue
		}

		updates := tu.GetStopTimeUpdate()
		if len(updates) == 0 {
			continue
		}

		destination, _ := strconv.Atoi(updates[len(updates)-1].GetStopId())

		for _, update := range updates {
			if update.GetStopId() != stopID {
				continue
			}

			entry, ok := stopTimeEntry(update, loc)
			if !ok {
				continue
			}

			entry.StationID = stationID
			entry.DestinationID = destination
			entry.LineNumber = trip.GetRouteId()
			entry.LineName = tu.GetVehicle().GetLabel()
			if trip.DirectionId != nil {
				entry.Direction = strconv.Itoa(int(trip.GetDirectionId()))
			}

			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func stopTimeEntry(update *gtfsproto.TripUpdate_StopTimeUpdate, loc *time.Location) (Entry, bool) {
	entry := Entry{}

	switch update.GetScheduleRelationship() {
	case gtfsproto.TripUpdate_StopTimeUpdate_SCHEDULED:
		entry.RealTime = true
	case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
		entry.RealTime = false
	default:
		return Entry{}, false
	}

	event := update.GetDeparture()
	if event == nil {
		event = update.GetArrival()
	}
	if event == nil {
		return entry, true
	}

	var delay time.Duration
	if event.Delay != nil {
		delay = time.Duration(event.GetDelay()) * time.Second
		minutes := int(delay / time.Minute)
		entry.Delay = &minutes
	}

	if event.Time != nil && event.GetTime() != 0 {
		planned := time.Unix(event.GetTime(), 0).In(loc).Add(-delay)
		entry.Planned = &planned
	}

	return entry, true
}
