package weather

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/cmjh/portal-weather/internal/observability"
)

// ErrUnknownCity is returned for cities outside the configured list.
var ErrUnknownCity = errors.New("unknown city")

// ServiceDeps bundles the collaborators of a Service. Publisher and Clock
// are optional.
type ServiceDeps struct {
	Store       Store
	Provider    FeedProvider
	Aggregator  *Aggregator
	Publisher   Publisher
	Cities      []string
	DefaultCity string
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
}

// Service orchestrates fetching feeds, aggregating them and persisting snapshots.
type Service struct {
	store       Store
	provider    FeedProvider
	aggregator  *Aggregator
	publisher   Publisher
	cities      []string
	defaultCity string
	logger      zerolog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock

	// seq orders snapshots by the time their fetch completed.
	seq atomic.Uint64
}

// NewService creates a new Service.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		store:       deps.Store,
		provider:    deps.Provider,
		aggregator:  deps.Aggregator,
		publisher:   deps.Publisher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		defaultCity: NormalizeCityName(deps.DefaultCity),
	}
	for _, c := range deps.Cities {
		s.cities = append(s.cities, NormalizeCityName(c))
	}
	if s.aggregator == nil {
		s.aggregator = NewAggregator()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetricsForTesting()
	}
	if s.defaultCity == "" && len(s.cities) > 0 {
		s.defaultCity = s.cities[0]
	}
	return s
}

// Cities returns the supported cities in configured order.
func (s *Service) Cities() []string {
	return slices.Clone(s.cities)
}

// DefaultCity is the city shown when the caller does not choose one.
func (s *Service) DefaultCity() string {
	return s.defaultCity
}

// ResolveCity normalizes name and checks it against the supported list.
// An empty name resolves to the default city.
func (s *Service) ResolveCity(name string) (string, error) {
	city := NormalizeCityName(name)
	if city == "" {
		city = s.defaultCity
	}
	if !slices.Contains(s.cities, city) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return city, nil
}

// FetchAndStore fetches the feed for city, aggregates it and stores the
// resulting snapshot. A fetch failure leaves the last good snapshot in place.
// An empty aggregation is stored as-is: it is the current "no data" state.
func (s *Service) FetchAndStore(ctx context.Context, city string) (Snapshot, error) {
	city, err := s.ResolveCity(city)
	if err != nil {
		return Snapshot{}, err
	}

	start := s.clock.Now()
	feed, err := s.provider.FetchFeed(ctx, city)
	if err != nil {
		s.metrics.FeedFetches.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("city", city).Str("provider", s.provider.Name()).Msg("feed fetch failed")
		return Snapshot{}, fmt.Errorf("fetch feed for %s: %w", city, err)
	}
	s.metrics.FeedFetches.WithLabelValues("success").Inc()
	s.metrics.FetchDuration.Observe(s.clock.Since(start).Seconds())

	result := s.aggregator.Aggregate(feed)
	s.recordDiagnostics(city, result)

	snapshot := Snapshot{
		ID:          uuid.NewString(),
		City:        city,
		FetchedAt:   s.clock.Now().UTC(),
		Sequence:    s.seq.Add(1),
		Current:     result.Current,
		Days:        result.Days,
		Diagnostics: result.Diagnostics,
	}

	if !s.store.SaveSnapshot(snapshot) {
		s.metrics.StaleSnapshots.Inc()
		s.logger.Debug().Str("city", city).Str("snapshot_id", snapshot.ID).Msg("newer snapshot already stored; discarding")
		return snapshot, nil
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, snapshot); err != nil {
			s.logger.Warn().Err(err).Str("city", city).Str("snapshot_id", snapshot.ID).Msg("publish snapshot failed")
		}
	}

	return snapshot, nil
}

func (s *Service) recordDiagnostics(city string, result Result) {
	d := result.Diagnostics
	s.metrics.DaysAggregated.Observe(float64(len(result.Days)))
	s.metrics.DefaultedValues.Add(float64(d.DefaultedValues))
	s.metrics.UnparsedValues.Add(float64(d.UnparsedValues))
	s.metrics.UndatedSlots.Add(float64(d.UndatedSlots))

	if result.Empty() {
		s.logger.Warn().Str("city", city).Strs("missing_elements", d.MissingElements).Msg("feed produced no forecast days")
		return
	}
	s.logger.Debug().
		Str("city", city).
		Int("days", len(result.Days)).
		Int("defaulted", d.DefaultedValues).
		Int("unparsed", d.UnparsedValues).
		Int("undated", d.UndatedSlots).
		Msg("feed aggregated")
}

// GetForecast returns the latest snapshot for city, fetching one when the
// store has none yet.
func (s *Service) GetForecast(ctx context.Context, city string) (Snapshot, error) {
	city, err := s.ResolveCity(city)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot, err := s.store.GetLatest(city)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrNoSnapshot) {
		return Snapshot{}, err
	}

	if _, err := s.FetchAndStore(ctx, city); err != nil {
		return Snapshot{}, err
	}
	// Re-read so a concurrently completed newer fetch wins.
	return s.store.GetLatest(city)
}

// GetHistory returns stored snapshots for city between from and to.
func (s *Service) GetHistory(city string, from, to time.Time) ([]Snapshot, error) {
	city, err := s.ResolveCity(city)
	if err != nil {
		return nil, err
	}
	return s.store.GetRange(city, from, to)
}
