package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLocationNotFound is returned when a response carries no data for the
	// requested location.
	ErrLocationNotFound = errors.New("location not found in feed")

	// ErrUpstreamFailure is returned when the open-data API reports failure.
	ErrUpstreamFailure = errors.New("upstream reported failure")
)

// cwaResponse covers the CWA open-data response shapes in one schema. Every
// field is optional; the two dataset families differ in where locations live
// and in how slot values are carried.
type cwaResponse struct {
	Success json.RawMessage `json:"success"`
	Records struct {
		// F-C0032-001: records.location[]
		Location []cwaLocation `json:"location"`
		// F-D0047-xxx: records.locations[].location[]
		Locations []struct {
			LocationsName string        `json:"locationsName"`
			Location      []cwaLocation `json:"location"`
		} `json:"locations"`
	} `json:"records"`
}

type cwaLocation struct {
	LocationName   string `json:"locationName"`
	WeatherElement []struct {
		ElementName string    `json:"elementName"`
		Time        []cwaTime `json:"time"`
	} `json:"weatherElement"`
}

type cwaTime struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	DataTime  string `json:"dataTime"`

	// F-C0032-001 carries one parameter per slot.
	Parameter *struct {
		ParameterName  string `json:"parameterName"`
		ParameterValue string `json:"parameterValue"`
		ParameterUnit  string `json:"parameterUnit"`
	} `json:"parameter"`

	// F-D0047-xxx carries a list of values per slot.
	ElementValue []struct {
		Value    string `json:"value"`
		Measures string `json:"measures"`
	} `json:"elementValue"`
}

// DecodeFeed decodes a CWA forecast response and returns the feed for
// locationName. An empty locationName selects the first location. Only
// structurally invalid responses and upstream failures are errors; missing
// elements or values are left for the aggregator to default.
func DecodeFeed(data []byte, locationName string) (*Feed, error) {
	var resp cwaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	if success := strings.Trim(string(resp.Success), `" `); strings.EqualFold(success, "false") {
		return nil, ErrUpstreamFailure
	}

	candidates := resp.Records.Location
	for _, group := range resp.Records.Locations {
		candidates = append(candidates, group.Location...)
	}

	for _, loc := range candidates {
		if locationName != "" && NormalizeCityName(loc.LocationName) != NormalizeCityName(locationName) {
			continue
		}
		return loc.toFeed(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrLocationNotFound, locationName)
}

func (l cwaLocation) toFeed() *Feed {
	feed := &Feed{
		LocationName: l.LocationName,
		Elements:     make([]RawElement, 0, len(l.WeatherElement)),
	}
	for _, we := range l.WeatherElement {
		el := RawElement{
			Name:      we.ElementName,
			TimeSlots: make([]TimeSlot, 0, len(we.Time)),
		}
		for _, t := range we.Time {
			el.TimeSlots = append(el.TimeSlots, t.toSlot())
		}
		feed.Elements = append(feed.Elements, el)
	}
	return feed
}

func (t cwaTime) toSlot() TimeSlot {
	slot := TimeSlot{StartTime: t.StartTime, EndTime: t.EndTime}
	// Point-in-time elements (e.g. hourly temperature) only carry dataTime.
	if slot.StartTime == "" {
		slot.StartTime = t.DataTime
	}
	if slot.EndTime == "" {
		slot.EndTime = slot.StartTime
	}

	if p := t.Parameter; p != nil {
		slot.Values = append(slot.Values, Value{Value: p.ParameterName, Measure: p.ParameterUnit})
		if p.ParameterValue != "" {
			slot.Values = append(slot.Values, Value{Value: p.ParameterValue})
		}
	}
	for _, ev := range t.ElementValue {
		slot.Values = append(slot.Values, Value{Value: ev.Value, Measure: ev.Measures})
	}
	return slot
}

// NormalizeCityName folds the common variant spelling of 臺 so that user
// input, geocoder output and API data compare equal.
func NormalizeCityName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "台", "臺")
}
