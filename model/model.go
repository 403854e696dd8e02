package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Holds all external facing types and constants.

// A departure is considered delayed when its delay exceeds this many
// minutes.
const DelayThreshold = 2

// Time of day as seconds since midnight. Carries no date.
type TimeOfDay int

const SecondsPerDay = 24 * 60 * 60

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// Time of day of t, in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// Parses "HH:MM:SS" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day '%s'", s)
	}

	values := [3]int{}
	limits := [3]int{24, 60, 60}
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || v >= limits[i] {
			return 0, fmt.Errorf("invalid time of day '%s'", s)
		}
		values[i] = v
	}

	return NewTimeOfDay(values[0], values[1], values[2]), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// One observed departure of a line from a station. Never mutated once
// stored.
//
// JSON field names match what the desktop client has always consumed.
type Departure struct {
	ID                   int64     `json:"id"`
	StationID            int       `json:"station_id" validate:"gt=0"`
	DestinationID        int       `json:"destination_id" validate:"gte=0"`
	Direction            string    `json:"direction" validate:"max=200"`
	DirectionFrom        string    `json:"direction_from" validate:"max=200"`
	LineNumber           string    `json:"line_number" validate:"required,max=5"`
	LineName             string    `json:"line_name" validate:"max=40"`
	PlannedDepartureTime TimeOfDay `json:"planned_departure_time" validate:"gte=0,lt=86400"`
	Delay                int       `json:"delay" validate:"gte=0"`
	ObservedAt           time.Time `json:"current_date" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Observation timestamps are kept in UTC at microsecond precision,
// the finest resolution postgres stores.
func ObservationTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Checks the departure invariants. Returns validator.ValidationErrors
// describing every violated field.
func (d *Departure) Validate() error {
	return validate.Struct(d)
}

// A line in one direction. Aggregation key for all line views.
type Line struct {
	Number    string `json:"line_number"`
	Direction string `json:"direction"`
}

// Reference data for a station.
type Station struct {
	Number int      `json:"number"`
	Name   string   `json:"name"`
	Lines  []string `json:"lines"`
}

// Mean delay (or delay risk in percent) of a line.
type LineDelay struct {
	LineNumber string  `json:"line_number"`
	Direction  string  `json:"direction"`
	Delay      float64 `json:"delay"`
}

func (l LineDelay) Line() Line {
	return Line{Number: l.LineNumber, Direction: l.Direction}
}

// Mean delay (or delay risk in percent) at a station. Name is nil when
// the station is missing from the reference catalog.
type StationDelay struct {
	StationID int     `json:"station_id"`
	Name      *string `json:"Name mit Ort"`
	Delay     float64 `json:"delay"`
}

// Mean delay of departures planned within a 30 minute slot. Delay is
// nil for leading slots preceding any observation.
type TimeslotDelay struct {
	TimeslotStart TimeOfDay `json:"timeslot_start"`
	Delay         *float64  `json:"delay"`
}
