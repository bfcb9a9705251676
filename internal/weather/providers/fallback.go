package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cmjh/portal-weather/internal/weather"
)

// Fallback tries each provider in order and returns the first feed that
// decodes. It implements weather.FeedProvider.
type Fallback struct {
	providers []weather.FeedProvider
	logger    zerolog.Logger
}

func NewFallback(logger zerolog.Logger, providers ...weather.FeedProvider) *Fallback {
	return &Fallback{providers: providers, logger: logger}
}

func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *Fallback) FetchFeed(ctx context.Context, city string) (*weather.Feed, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no weather providers configured")
	}

	var errs []error
	for i, p := range f.providers {
		feed, err := p.FetchFeed(ctx, city)
		if err == nil {
			if i > 0 {
				f.logger.Info().Str("city", city).Str("provider", p.Name()).Msg("served feed from fallback provider")
			}
			return feed, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn().Err(err).Str("city", city).Str("provider", p.Name()).Msg("provider fetch failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, errors.Join(errs...)
}
