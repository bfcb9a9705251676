package geo

import (
	"context"
	"fmt"
	"slices"

	"github.com/kelvins/geocoder"
	"github.com/rs/zerolog"

	"github.com/cmjh/portal-weather/internal/weather"
)

// ReverseGeocoder returns the administrative area names for a coordinate,
// most specific first.
type ReverseGeocoder interface {
	AreaNames(ctx context.Context, lat, lon float64) ([]string, error)
}

// Result is the city chosen for a coordinate and how it was chosen.
type Result struct {
	City   string `json:"city"`
	Source string `json:"source"` // "geocoder" or "latitude"
}

// Locator maps coordinates to one of the supported cities.
type Locator struct {
	cities   []string
	geocoder ReverseGeocoder
	logger   zerolog.Logger
}

// NewLocator creates a Locator. A nil reverse geocoder uses the latitude bands only.
func NewLocator(cities []string, reverse ReverseGeocoder, logger zerolog.Logger) *Locator {
	normalized := make([]string, 0, len(cities))
	for _, c := range cities {
		normalized = append(normalized, weather.NormalizeCityName(c))
	}
	return &Locator{cities: normalized, geocoder: reverse, logger: logger}
}

// Locate resolves lat/lon to a supported city. Geocoder failures degrade to
// the latitude bands.
func (l *Locator) Locate(ctx context.Context, lat, lon float64) Result {
	if l.geocoder != nil {
		names, err := l.geocoder.AreaNames(ctx, lat, lon)
		if err != nil {
			l.logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("reverse geocoding failed")
		}
		for _, name := range names {
			if city := weather.NormalizeCityName(name); slices.Contains(l.cities, city) {
				return Result{City: city, Source: "geocoder"}
			}
		}
	}
	return Result{City: CityForLatitude(lat), Source: "latitude"}
}

// CityForLatitude picks a city from coarse north-to-south latitude bands.
func CityForLatitude(lat float64) string {
	switch {
	case lat > 25.0:
		return "臺北市"
	case lat > 24.5:
		return "新竹市"
	case lat > 24.0:
		return "臺中市"
	case lat > 23.0:
		return "臺南市"
	default:
		return "高雄市"
	}
}

// GoogleGeocoder implements ReverseGeocoder with the Google Geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the geocoding API key.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// AreaNames returns the state, city and county of the first address found.
// The underlying client does not take a context.
func (g *GoogleGeocoder) AreaNames(_ context.Context, lat, lon float64) ([]string, error) {
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: lat, Longitude: lon})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	if len(addresses) == 0 {
		return nil, nil
	}
	a := addresses[0]
	var names []string
	for _, n := range []string{a.City, a.County, a.State} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
