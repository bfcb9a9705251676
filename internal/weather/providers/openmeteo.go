package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cmjh/portal-weather/internal/weather"
)

// DefaultOpenMeteoBaseURL is the keyless Open-Meteo forecast endpoint.
const DefaultOpenMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// Coordinates is a point used to query coordinate-based providers.
type Coordinates struct {
	Lat, Lon float64
}

// CityCoordinates are the county seats of the supported cities.
var CityCoordinates = map[string]Coordinates{
	"臺北市": {25.0375, 121.5637},
	"新北市": {25.0120, 121.4657},
	"桃園市": {24.9936, 121.3010},
	"臺中市": {24.1477, 120.6736},
	"臺南市": {22.9997, 120.2270},
	"高雄市": {22.6273, 120.3014},
	"基隆市": {25.1276, 121.7392},
	"新竹市": {24.8138, 120.9675},
	"嘉義市": {23.4801, 120.4491},
	"新竹縣": {24.8387, 121.0178},
	"苗栗縣": {24.5602, 120.8214},
	"彰化縣": {24.0518, 120.5161},
	"南投縣": {23.9096, 120.6846},
	"雲林縣": {23.7092, 120.4313},
	"嘉義縣": {23.4518, 120.2555},
	"屏東縣": {22.6690, 120.4862},
	"宜蘭縣": {24.7021, 121.7378},
	"花蓮縣": {23.9872, 121.6016},
	"臺東縣": {22.7583, 121.1444},
	"澎湖縣": {23.5712, 119.5793},
	"金門縣": {24.4367, 118.3186},
	"連江縣": {26.1608, 119.9517},
}

// OpenMeteoConfig configures the Open-Meteo provider.
type OpenMeteoConfig struct {
	BaseURL string
	// Timezone is the IANA zone daily values are bucketed in.
	Timezone string
	Days     int
}

// OpenMeteoProvider implements weather.FeedProvider for Open-Meteo. It maps
// the daily forecast onto CWA element names with one slot per day.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	timezone string
	days     int
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenMeteoBaseURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Taipei"
	}
	if cfg.Days <= 0 {
		cfg.Days = weather.DefaultMaxDays
	}

	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  cfg.BaseURL,
		timezone: cfg.Timezone,
		days:     cfg.Days,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoDaily struct {
	Time             []string   `json:"time"`
	WeatherCode      []*int     `json:"weather_code"`
	TempMax          []*float64 `json:"temperature_2m_max"`
	TempMin          []*float64 `json:"temperature_2m_min"`
	PrecipProbMax    []*float64 `json:"precipitation_probability_max"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	RelativeHumidity []*float64 `json:"relative_humidity_2m_mean"`
}

// FetchFeed downloads the daily forecast at the city's coordinates.
func (p *OpenMeteoProvider) FetchFeed(ctx context.Context, city string) (*weather.Feed, error) {
	city = weather.NormalizeCityName(city)
	coords, ok := CityCoordinates[city]
	if !ok {
		return nil, fmt.Errorf("%w: no coordinates for %q", weather.ErrLocationNotFound, city)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
		values.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max,wind_speed_10m_max,relative_humidity_2m_mean")
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", p.timezone)
		values.Set("forecast_days", strconv.Itoa(p.days))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily openMeteoDaily `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode openmeteo response: %w", err)
	}

	return payload.Daily.toFeed(city), nil
}

func (d openMeteoDaily) toFeed(city string) *weather.Feed {
	conditions := make([]string, len(d.Time))
	for i := range d.Time {
		if i < len(d.WeatherCode) && d.WeatherCode[i] != nil {
			conditions[i] = openMeteoCondition(*d.WeatherCode[i])
		}
	}

	return &weather.Feed{
		LocationName: city,
		Elements: []weather.RawElement{
			dailyElement(weather.ElementCondition, d.Time, conditions),
			dailyElement(weather.ElementMinTemp, d.Time, formatNumbers(d.TempMin)),
			dailyElement(weather.ElementMaxTemp, d.Time, formatNumbers(d.TempMax)),
			dailyElement(weather.ElementPrecipProb, d.Time, formatNumbers(d.PrecipProbMax)),
			dailyElement(weather.ElementWindSpeed, d.Time, formatNumbers(d.WindSpeedMax)),
			dailyElement(weather.ElementHumidity, d.Time, formatNumbers(d.RelativeHumidity)),
		},
	}
}

// dailyElement builds one slot per date. Missing values become empty slots
// so the aggregator applies its defaults.
func dailyElement(name string, dates, values []string) weather.RawElement {
	el := weather.RawElement{Name: name, TimeSlots: make([]weather.TimeSlot, 0, len(dates))}
	for i, date := range dates {
		slot := weather.TimeSlot{StartTime: date, EndTime: date}
		if i < len(values) && values[i] != "" {
			slot.Values = []weather.Value{{Value: values[i]}}
		}
		el.TimeSlots = append(el.TimeSlots, slot)
	}
	return el
}

func formatNumbers(values []*float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	return out
}

// openMeteoCondition maps WMO weather codes onto CWA-style condition text.
func openMeteoCondition(code int) string {
	switch {
	case code == 0:
		return "晴"
	case code == 1 || code == 2:
		return "多雲"
	case code == 3:
		return "陰"
	case code == 45 || code == 48:
		return "霧"
	case code >= 51 && code <= 57:
		return "毛毛雨"
	case code >= 61 && code <= 67:
		return "雨"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "雪"
	case code >= 80 && code <= 82:
		return "陣雨"
	case code >= 95:
		return "雷雨"
	default:
		return ""
	}
}
