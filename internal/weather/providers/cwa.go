package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cmjh/portal-weather/internal/weather"
)

const (
	// DefaultCWABaseURL is the CWA open-data REST datastore.
	DefaultCWABaseURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore"
	// DefaultCWADataset is the 36-hour county forecast.
	DefaultCWADataset = "F-C0032-001"

	maxFeedBytes = 8 << 20
)

// CWAConfig configures the CWA provider.
type CWAConfig struct {
	APIKey  string
	BaseURL string
	Dataset string
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// CWAProvider implements weather.FeedProvider for the Central Weather
// Administration open-data API.
type CWAProvider struct {
	name    string
	apiKey  string
	baseURL string
	dataset string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewCWAProvider(client *http.Client, cfg CWAConfig) *CWAProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCWABaseURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultCWADataset
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &CWAProvider{
		name:    "cwa",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		dataset: cfg.Dataset,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			Limiter: limiter,
		},
		circuit: newCircuitBreaker("cwa"),
	}
}

func (p *CWAProvider) Name() string {
	return p.name
}

// FetchFeed downloads the dataset for one city and decodes it into a feed.
func (p *CWAProvider) FetchFeed(ctx context.Context, city string) (*weather.Feed, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("cwa api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("Authorization", p.apiKey)
		values.Set("locationName", city)
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(p.dataset), values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read cwa response: %w", err)
	}

	return weather.DecodeFeed(body, city)
}
