package aggregate

// Statistics over observed departures. All functions are pure,
// deterministic and accept empty input.

import (
	"math"
	"sort"

	"delyzer.dev/delyzer/model"
)

// Width of a time bucket, in seconds.
const BucketSize = 30 * 60

// Number of time buckets per day.
const BucketsPerDay = model.SecondsPerDay / BucketSize

// Rounds half away from zero to two decimals.
func Round(x float64) float64 {
	return math.Round(x*100) / 100
}

// Running count and delay sum of a group.
type tally struct {
	count   int
	sum     int
	delayed int
}

func (t *tally) add(delay int) {
	t.count++
	t.sum += delay
	if delay > model.DelayThreshold {
		t.delayed++
	}
}

func (t tally) mean() float64 {
	return Round(float64(t.sum) / float64(t.count))
}

// Share of delayed departures, in percent.
func (t tally) risk() float64 {
	return Round(100 * float64(t.delayed) / float64(t.count))
}

// Departures of a line in one direction, in input order.
func FilterByLine(records []*model.Departure, line string, direction string) []*model.Departure {
	filtered := []*model.Departure{}
	for _, r := range records {
		if r.LineNumber == line && r.Direction == direction {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func byLine(records []*model.Departure) map[model.Line]*tally {
	groups := map[model.Line]*tally{}
	for _, r := range records {
		key := model.Line{Number: r.LineNumber, Direction: r.Direction}
		if groups[key] == nil {
			groups[key] = &tally{}
		}
		groups[key].add(r.Delay)
	}
	return groups
}

func byStation(records []*model.Departure) map[int]*tally {
	groups := map[int]*tally{}
	for _, r := range records {
		if groups[r.StationID] == nil {
			groups[r.StationID] = &tally{}
		}
		groups[r.StationID].add(r.Delay)
	}
	return groups
}

func lineRows(groups map[model.Line]*tally, metric func(tally) float64) []model.LineDelay {
	rows := make([]model.LineDelay, 0, len(groups))
	for key, t := range groups {
		rows = append(rows, model.LineDelay{
			LineNumber: key.Number,
			Direction:  key.Direction,
			Delay:      metric(*t),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Delay != rows[j].Delay {
			return rows[i].Delay > rows[j].Delay
		}
		return lessLine(rows[i].Line(), rows[j].Line())
	})

	return rows
}

func stationRows(groups map[int]*tally, names map[int]string, metric func(tally) float64) []model.StationDelay {
	rows := make([]model.StationDelay, 0, len(groups))
	for station, t := range groups {
		row := model.StationDelay{
			StationID: station,
			Delay:     metric(*t),
		}
		if name, ok := names[station]; ok {
			row.Name = &name
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Delay != rows[j].Delay {
			return rows[i].Delay > rows[j].Delay
		}
		return rows[i].StationID < rows[j].StationID
	})

	return rows
}

func lessLine(a, b model.Line) bool {
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.Direction < b.Direction
}

// Mean delay per line and direction, most delayed first.
func ByLineDelay(records []*model.Departure) []model.LineDelay {
	return lineRows(byLine(records), tally.mean)
}

// Mean delay per station, most delayed first. Stations missing from
// names get a nil Name.
func ByStationDelay(records []*model.Departure, names map[int]string) []model.StationDelay {
	return stationRows(byStation(records), names, tally.mean)
}

// Percentage of departures delayed more than model.DelayThreshold per
// station, highest first.
func RiskAtStation(records []*model.Departure, names map[int]string) []model.StationDelay {
	return stationRows(byStation(records), names, tally.risk)
}

// Percentage of departures delayed more than model.DelayThreshold per
// line and direction, highest first.
func RiskOfLine(records []*model.Departure) []model.LineDelay {
	return lineRows(byLine(records), tally.risk)
}

// Distinct lines and directions, ordered.
func Lines(records []*model.Departure) []model.Line {
	groups := byLine(records)

	lines := make([]model.Line, 0, len(groups))
	for key := range groups {
		lines = append(lines, key)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lessLine(lines[i], lines[j])
	})

	return lines
}

// Rows of the station named name, in input order.
func StationRiskByName(rows []model.StationDelay, name string) []model.StationDelay {
	filtered := []model.StationDelay{}
	for _, r := range rows {
		if r.Name != nil && *r.Name == name {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Mean delay per 30 minute slot of planned departure time, for every
// slot of the day. Slots without departures carry the mean of the
// preceding slot; slots before the first departure have no delay.
//
// Empty input yields no slots.
func ByTimeBucket(records []*model.Departure) []model.TimeslotDelay {
	if len(records) == 0 {
		return []model.TimeslotDelay{}
	}

	buckets := make([]tally, BucketsPerDay)
	for _, r := range records {
		i := int(r.PlannedDepartureTime) / BucketSize
		if i < 0 || i >= BucketsPerDay {
			continue
		}
		buckets[i].add(r.Delay)
	}

	slots := make([]model.TimeslotDelay, BucketsPerDay)
	var last *float64
	for i, b := range buckets {
		if b.count > 0 {
			mean := b.mean()
			last = &mean
		}
		slots[i] = model.TimeslotDelay{
			TimeslotStart: model.TimeOfDay(i * BucketSize),
		}
		if last != nil {
			delay := *last
			slots[i].Delay = &delay
		}
	}

	return slots
}
