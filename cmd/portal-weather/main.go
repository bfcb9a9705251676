package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/cmjh/portal-weather/internal/api/http"
	"github.com/cmjh/portal-weather/internal/config"
	"github.com/cmjh/portal-weather/internal/geo"
	"github.com/cmjh/portal-weather/internal/observability"
	"github.com/cmjh/portal-weather/internal/publisher"
	"github.com/cmjh/portal-weather/internal/scheduler"
	"github.com/cmjh/portal-weather/internal/store"
	"github.com/cmjh/portal-weather/internal/weather"
	"github.com/cmjh/portal-weather/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, dotenv, err := config.Load()
	if err != nil {
		bootLog := observability.NewLogger("info", "json")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if !dotenv {
		log.Info().Msg("no .env file found; using environment only")
	}
	if cfg.CWAAPIKey == "" {
		log.Warn().Msg("CWA_API_KEY is not set; CWA fetches will fail")
	}

	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	// Providers with resilience (rate limit + backoff + circuit breaker).
	var provider weather.FeedProvider = providers.NewCWAProvider(httpClient, providers.CWAConfig{
		APIKey:    cfg.CWAAPIKey,
		BaseURL:   cfg.CWABaseURL,
		Dataset:   cfg.CWADataset,
		RateLimit: cfg.CWARateLimit,
		Burst:     cfg.CWABurst,
	})
	if cfg.OpenMeteoFallback {
		provider = providers.NewFallback(log, provider, providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoConfig{
			BaseURL:  cfg.OpenMeteoBaseURL,
			Timezone: cfg.Location.String(),
			Days:     cfg.MaxDays,
		}))
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	deps := weather.ServiceDeps{
		Store:       memStore,
		Provider:    provider,
		Aggregator:  weather.NewAggregator(weather.WithLocation(cfg.Location), weather.WithMaxDays(cfg.MaxDays)),
		Cities:      cfg.Cities,
		DefaultCity: cfg.DefaultCity,
		Logger:      log,
		Metrics:     metrics,
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, metrics)
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("closing kafka publisher")
			}
		}()
		deps.Publisher = kafka
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing snapshots to kafka")
	}

	// Core service orchestrating the provider, aggregator and store.
	service := weather.NewService(deps)

	var reverse geo.ReverseGeocoder
	if cfg.GeocoderAPIKey != "" {
		reverse = geo.NewCachedGeocoder(geo.NewGoogleGeocoder(cfg.GeocoderAPIKey), 512)
	}
	locator := geo.NewLocator(service.Cities(), reverse, log)

	// A refresh may retry and fall back, so it gets several request timeouts.
	refreshTimeout := cfg.HTTPTimeout * 4

	// Scheduler that periodically fetches and stores data.
	sched := scheduler.New(service.Cities(), cfg.FetchInterval, refreshTimeout, service, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "portal-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A forecast request may fetch on a store miss; leave room to write the response.
		WriteTimeout:          refreshTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "portal-weather",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.NewHandlers(service, locator, cfg.Locale, refreshTimeout))

	go func() {
		log.Info().Str("port", cfg.Port).Int("cities", len(cfg.Cities)).Msg("starting http server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
