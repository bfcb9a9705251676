package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var testCities = []string{"臺北市", "新北市", "新竹市", "臺中市", "臺南市", "高雄市", "花蓮縣"}

type stubGeocoder struct {
	names []string
	err   error
	calls int
}

func (s *stubGeocoder) AreaNames(_ context.Context, _, _ float64) ([]string, error) {
	s.calls++
	return s.names, s.err
}

func TestCityForLatitude(t *testing.T) {
	tests := []struct {
		lat  float64
		want string
	}{
		{25.03, "臺北市"},
		{25.0, "新竹市"},
		{24.8, "新竹市"},
		{24.15, "臺中市"},
		{22.99, "高雄市"},
		{23.0, "高雄市"},
		{23.1, "臺南市"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CityForLatitude(tt.lat), "lat %v", tt.lat)
	}
}

func TestLocate_WithoutGeocoder(t *testing.T) {
	l := NewLocator(testCities, nil, zerolog.Nop())
	got := l.Locate(context.Background(), 23.0, 120.2)
	assert.Equal(t, Result{City: "高雄市", Source: "latitude"}, got)
}

func TestLocate_GeocoderMatchNormalizesSpelling(t *testing.T) {
	g := &stubGeocoder{names: []string{"東區", "台南市"}}
	l := NewLocator(testCities, g, zerolog.Nop())

	got := l.Locate(context.Background(), 22.99, 120.21)

	assert.Equal(t, Result{City: "臺南市", Source: "geocoder"}, got)
	assert.Equal(t, 1, g.calls)
}

func TestLocate_GeocoderFailureFallsBack(t *testing.T) {
	g := &stubGeocoder{err: errors.New("quota exceeded")}
	l := NewLocator(testCities, g, zerolog.Nop())

	got := l.Locate(context.Background(), 24.97, 121.54)

	assert.Equal(t, Result{City: "新竹市", Source: "latitude"}, got)
}

func TestLocate_GeocoderUnsupportedAreaFallsBack(t *testing.T) {
	g := &stubGeocoder{names: []string{"Tokyo"}}
	l := NewLocator(testCities, g, zerolog.Nop())

	got := l.Locate(context.Background(), 25.1, 121.5)

	assert.Equal(t, Result{City: "臺北市", Source: "latitude"}, got)
}
