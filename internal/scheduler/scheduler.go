package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/cmjh/portal-weather/internal/weather"
)

// Refresher fetches and stores the forecast for one city.
type Refresher interface {
	FetchAndStore(ctx context.Context, city string) (weather.Snapshot, error)
}

// Scheduler periodically refreshes forecasts for configured cities.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	refresher    Refresher
	cities       []string
	interval     time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// New creates a new Scheduler.
func New(cities []string, interval, fetchTimeout time.Duration, refresher Refresher, logger zerolog.Logger) *Scheduler {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		refresher:    refresher,
		cities:       cities,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		logger:       logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.logger.Info().Msg("no cities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every configured city concurrently and waits for all of
// them. Failures are logged; the previous snapshot stays in place.
func (s *Scheduler) RunOnce() {
	s.logger.Info().Int("cities", len(s.cities)).Msg("running forecast refresh")

	var wg sync.WaitGroup
	for _, city := range s.cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
			defer cancel()

			if _, err := s.refresher.FetchAndStore(ctx, city); err != nil {
				s.logger.Warn().Err(err).Str("city", city).Msg("refresh failed")
			}
		}(city)
	}
	wg.Wait()

	s.logger.Info().Msg("forecast refresh completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
