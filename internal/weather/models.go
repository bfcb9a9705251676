package weather

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Condition is the display category a forecast condition string resolves to.
type Condition string

const (
	ConditionClear  Condition = "clear"
	ConditionCloudy Condition = "cloudy"
	ConditionRain   Condition = "rain"
	ConditionSnow   Condition = "snow"
)

// Canonical element names of the meteorological feed.
const (
	ElementCondition     = "Wx"
	ElementMinTemp       = "MinT"
	ElementMaxTemp       = "MaxT"
	ElementPrecipProb    = "PoP12h"
	ElementComfort       = "CI"
	ElementHumidity      = "RH"
	ElementWindSpeed     = "WS"
	ElementWindDirection = "WD"
)

// Value is one reading within a time slot. Measure carries the unit or the
// kind of reading when the upstream feed provides one.
type Value struct {
	Value   string `json:"value"`
	Measure string `json:"measure,omitempty"`
}

// TimeSlot is one reporting interval of an element.
type TimeSlot struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Values    []Value `json:"values"`
}

// First returns the first value of the slot, if any.
func (s TimeSlot) First() (string, bool) {
	if len(s.Values) == 0 {
		return "", false
	}
	return s.Values[0].Value, true
}

// RawElement is a single named metric's time series.
type RawElement struct {
	Name      string     `json:"name"`
	TimeSlots []TimeSlot `json:"timeSlots"`
}

// Feed is one fetched snapshot of meteorological data for a location.
type Feed struct {
	LocationName string       `json:"locationName"`
	Elements     []RawElement `json:"elements"`
}

// RelativeDay is the number of calendar days between a forecast date and
// today. Negative values are days in the past.
type RelativeDay int

// DayKind classifies a RelativeDay.
type DayKind int

const (
	DayOther DayKind = iota
	DayToday
	DayTomorrow
	DayAfterTomorrow
)

func (d RelativeDay) Kind() DayKind {
	switch d {
	case 0:
		return DayToday
	case 1:
		return DayTomorrow
	case 2:
		return DayAfterTomorrow
	default:
		return DayOther
	}
}

func (d RelativeDay) String() string {
	switch d.Kind() {
	case DayToday:
		return "today"
	case DayTomorrow:
		return "tomorrow"
	case DayAfterTomorrow:
		return "day_after"
	default:
		return "day_" + strconv.Itoa(int(d))
	}
}

func (d RelativeDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *RelativeDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("relative day: %w", err)
	}
	switch s {
	case "today":
		*d = 0
	case "tomorrow":
		*d = 1
	case "day_after":
		*d = 2
	default:
		n, err := strconv.Atoi(strings.TrimPrefix(s, "day_"))
		if err != nil || !strings.HasPrefix(s, "day_") {
			return fmt.Errorf("relative day: invalid value %q", s)
		}
		*d = RelativeDay(n)
	}
	return nil
}

// DailySummary is the reduced forecast for one calendar date.
type DailySummary struct {
	Date                 time.Time    `json:"date"` // local midnight in the feed timezone
	Relative             RelativeDay  `json:"relative"`
	Weekday              time.Weekday `json:"weekday"`
	Condition            string       `json:"condition"`
	MinTemp              float64      `json:"minTemp"`
	MaxTemp              float64      `json:"maxTemp"`
	HasMinTemp           bool         `json:"hasMinTemp"`
	HasMaxTemp           bool         `json:"hasMaxTemp"`
	MaxPrecipProbability float64      `json:"maxPrecipProbability"`
	AvgHumidity          float64      `json:"avgHumidity"`
	WindSpeed            string       `json:"windSpeed"`
	ComfortIndex         string       `json:"comfortIndex"`
	Slots                int          `json:"slots"`
}

// Current is the reading of the earliest dated Wx slot, shown as the
// current conditions. Values are taken as reported, not reduced over a day.
type Current struct {
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Condition         string    `json:"condition"`
	PrecipProbability float64   `json:"precipProbability"`
	MinTemp           float64   `json:"minTemp"`
	MaxTemp           float64   `json:"maxTemp"`
	HasMinTemp        bool      `json:"hasMinTemp"`
	HasMaxTemp        bool      `json:"hasMaxTemp"`
}

// Diagnostics records how much of a feed had to be defaulted or dropped
// while aggregating. It is informational only.
type Diagnostics struct {
	MissingElements []string `json:"missingElements,omitempty"`
	UndatedSlots    int      `json:"undatedSlots,omitempty"`
	DefaultedValues int      `json:"defaultedValues,omitempty"`
	UnparsedValues  int      `json:"unparsedValues,omitempty"`
	DroppedDays     int      `json:"droppedDays,omitempty"`
}

// Result is the outcome of aggregating one feed. An empty Days slice means
// there is no data to show.
type Result struct {
	Current     *Current       `json:"current,omitempty"`
	Days        []DailySummary `json:"days"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}

// Empty reports whether the result holds no daily summaries.
func (r Result) Empty() bool {
	return len(r.Days) == 0
}

// Snapshot is a stored aggregation result for a city.
type Snapshot struct {
	ID          string         `json:"id"`
	City        string         `json:"city"`
	FetchedAt   time.Time      `json:"fetchedAt"` // always UTC
	Sequence    uint64         `json:"-"`
	Current     *Current       `json:"current,omitempty"`
	Days        []DailySummary `json:"days"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}
