package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // WEATHER_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"

	"github.com/cmjh/portal-weather/internal/weather"
	"github.com/cmjh/portal-weather/internal/weather/providers"
)

// DefaultCities are the counties and cities covered by the CWA county forecast.
var DefaultCities = []string{
	"臺北市", "新北市", "桃園市", "臺中市", "臺南市", "高雄市",
	"基隆市", "新竹市", "嘉義市", "新竹縣", "苗栗縣", "彰化縣",
	"南投縣", "雲林縣", "嘉義縣", "屏東縣", "宜蘭縣", "花蓮縣",
	"臺東縣", "澎湖縣", "金門縣", "連江縣",
}

type AppConfig struct {
	CWAAPIKey  string
	CWABaseURL string
	CWADataset string

	// OpenMeteoFallback serves feeds from Open-Meteo when CWA fails.
	OpenMeteoFallback bool
	OpenMeteoBaseURL  string

	// Outbound request budget for the CWA API. Zero RPS disables limiting.
	CWARateLimit float64
	CWABurst     int

	Cities      []string
	DefaultCity string
	Location    *time.Location
	Locale      string
	MaxDays     int

	// FetchInterval controls how often we refresh every city.
	FetchInterval time.Duration
	HTTPTimeout   time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of snapshots per city (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	Port      string
	LogLevel  string
	LogFormat string

	GeocoderAPIKey string

	// Publishing is disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment with sensible defaults. A .env
// file in the working directory is applied first when present; the returned
// flag reports whether one was found.
func Load() (*AppConfig, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := fromEnv()
	return cfg, dotenv, err
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.CWAAPIKey = os.Getenv("CWA_API_KEY")
	cfg.CWABaseURL = getenvDefault("CWA_BASE_URL", providers.DefaultCWABaseURL)
	cfg.CWADataset = getenvDefault("CWA_DATASET", providers.DefaultCWADataset)

	cfg.OpenMeteoFallback = getenvBool("OPENMETEO_FALLBACK", true)
	cfg.OpenMeteoBaseURL = getenvDefault("OPENMETEO_BASE_URL", providers.DefaultOpenMeteoBaseURL)

	rps, err := strconv.ParseFloat(getenvDefault("CWA_RATE_LIMIT_RPS", "2"), 64)
	if err != nil || rps < 0 {
		return nil, fmt.Errorf("invalid CWA_RATE_LIMIT_RPS: %q", os.Getenv("CWA_RATE_LIMIT_RPS"))
	}
	cfg.CWARateLimit = rps
	cfg.CWABurst = getenvInt("CWA_RATE_LIMIT_BURST", 4)

	cfg.Cities = splitList(os.Getenv("WEATHER_CITIES"))
	if len(cfg.Cities) == 0 {
		cfg.Cities = append([]string(nil), DefaultCities...)
	}
	for i, c := range cfg.Cities {
		cfg.Cities[i] = weather.NormalizeCityName(c)
	}

	cfg.DefaultCity = weather.NormalizeCityName(getenvDefault("WEATHER_DEFAULT_CITY", "臺南市"))
	if !slices.Contains(cfg.Cities, cfg.DefaultCity) {
		return nil, fmt.Errorf("WEATHER_DEFAULT_CITY %q is not in WEATHER_CITIES", cfg.DefaultCity)
	}

	loc, err := time.LoadLocation(getenvDefault("WEATHER_TIMEZONE", "Asia/Taipei"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.Locale = getenvDefault("WEATHER_LOCALE", "zh-TW")
	cfg.MaxDays = getenvInt("WEATHER_MAX_DAYS", weather.DefaultMaxDays)
	if cfg.MaxDays <= 0 {
		return nil, fmt.Errorf("invalid WEATHER_MAX_DAYS: must be positive")
	}

	// Scheduler interval: default 30 minutes.
	cfg.FetchInterval, err = time.ParseDuration(getenvDefault("FETCH_INTERVAL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}

	cfg.HTTPTimeout, err = time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 48) // roughly 24h at 30-minute intervals

	cfg.StoreMaxAge, err = time.ParseDuration(getenvDefault("STORE_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", "weather-forecasts")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
