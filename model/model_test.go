package model_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delyzer.dev/delyzer/model"
)

func TestParseTimeOfDay(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected model.TimeOfDay
		err      bool
	}{
		{"07:42:00", model.NewTimeOfDay(7, 42, 0), false},
		{"07:42", model.NewTimeOfDay(7, 42, 0), false},
		{"00:00:00", 0, false},
		{"23:59:59", model.SecondsPerDay - 1, false},
		{"24:00:00", 0, true},
		{"12:60", 0, true},
		{"7", 0, true},
		{"a:b:c", 0, true},
		{"01:02:03:04", 0, true},
	} {
		parsed, err := model.ParseTimeOfDay(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, parsed, tc.in)
	}
}

func TestTimeOfDay(t *testing.T) {
	tod := model.NewTimeOfDay(7, 42, 5)
	assert.Equal(t, 7, tod.Hour())
	assert.Equal(t, 42, tod.Minute())
	assert.Equal(t, 5, tod.Second())
	assert.Equal(t, "07:42:05", tod.String())
	assert.Equal(t, 7*time.Hour+42*time.Minute+5*time.Second, tod.Duration())

	berlin := time.FixedZone("CEST", 2*60*60)
	assert.Equal(t,
		model.NewTimeOfDay(9, 15, 0),
		model.TimeOfDayOf(time.Date(2023, 6, 12, 7, 15, 0, 0, time.UTC).In(berlin)))

	buf, err := json.Marshal(tod)
	require.NoError(t, err)
	assert.Equal(t, `"07:42:05"`, string(buf))

	var decoded model.TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"23:30:00"`), &decoded))
	assert.Equal(t, model.NewTimeOfDay(23, 30, 0), decoded)

	assert.Error(t, json.Unmarshal([]byte(`1800`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &decoded))
}

func validDeparture() *model.Departure {
	return &model.Departure{
		StationID:            5006056,
		DestinationID:        5000355,
		Direction:            "Herrenberg",
		DirectionFrom:        "Kirchheim (T)",
		LineNumber:           "S1",
		LineName:             "S-Bahn",
		PlannedDepartureTime: model.NewTimeOfDay(7, 42, 0),
		Delay:                3,
		ObservedAt:           time.Date(2023, 6, 12, 7, 45, 30, 0, time.UTC),
	}
}

func TestDepartureValidate(t *testing.T) {
	require.NoError(t, validDeparture().Validate())

	for _, tc := range []struct {
		field  string
		mutate func(d *model.Departure)
	}{
		{"StationID", func(d *model.Departure) { d.StationID = 0 }},
		{"DestinationID", func(d *model.Departure) { d.DestinationID = -1 }},
		{"Direction", func(d *model.Departure) { d.Direction = strings.Repeat("x", 201) }},
		{"LineNumber", func(d *model.Departure) { d.LineNumber = "" }},
		{"LineNumber", func(d *model.Departure) { d.LineNumber = "S-Bahn" }},
		{"LineName", func(d *model.Departure) { d.LineName = strings.Repeat("x", 41) }},
		{"PlannedDepartureTime", func(d *model.Departure) { d.PlannedDepartureTime = model.SecondsPerDay }},
		{"Delay", func(d *model.Departure) { d.Delay = -1 }},
		{"ObservedAt", func(d *model.Departure) { d.ObservedAt = time.Time{} }},
	} {
		d := validDeparture()
		tc.mutate(d)

		err := d.Validate()
		require.Error(t, err, tc.field)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs), tc.field)
		require.Equal(t, 1, len(verrs), tc.field)
		assert.Equal(t, tc.field, verrs[0].Field())
	}
}

func TestLineDelayLine(t *testing.T) {
	row := model.LineDelay{LineNumber: "S1", Direction: "Herrenberg", Delay: 2}
	assert.Equal(t, model.Line{Number: "S1", Direction: "Herrenberg"}, row.Line())
}
