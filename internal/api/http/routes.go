package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cmjh/portal-weather/internal/geo"
	"github.com/cmjh/portal-weather/internal/store"
	"github.com/cmjh/portal-weather/internal/weather"
)

var validate = validator.New()

// Handlers serves the forecast API.
type Handlers struct {
	service *weather.Service
	locator *geo.Locator
	// locale is the last-resort language preference, after ?lang= and Accept-Language.
	locale string
	// fetchTimeout bounds a forecast request that has to fetch on a store miss.
	// It must stay below the server's write timeout.
	fetchTimeout time.Duration
}

// NewHandlers creates the API handlers. A fetchTimeout <= 0 leaves forecast
// requests bounded only by the request context.
func NewHandlers(service *weather.Service, locator *geo.Locator, defaultLocale string, fetchTimeout time.Duration) *Handlers {
	return &Handlers{service: service, locator: locator, locale: defaultLocale, fetchTimeout: fetchTimeout}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handlers) {
	v1 := app.Group("/api/v1")

	v1.Get("/cities", h.cities)
	v1.Get("/weather/forecast", h.forecast)
	v1.Get("/weather/history", h.history)
	v1.Get("/locate", h.locate)
}

func (h *Handlers) cities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cities":      h.service.Cities(),
		"defaultCity": h.service.DefaultCity(),
	})
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	City string
	Lang string `validate:"omitempty,bcp47_language_tag"`
}

type forecastResponse struct {
	City        string                  `json:"city"`
	FetchedAt   time.Time               `json:"fetchedAt"`
	Locale      string                  `json:"locale"`
	NoData      bool                    `json:"noData"`
	Current     *weather.DisplayCurrent `json:"current,omitempty"`
	Days        []weather.DisplayDay    `json:"days"`
	Diagnostics weather.Diagnostics     `json:"diagnostics"`
}

func (h *Handlers) forecast(c *fiber.Ctx) error {
	q := forecastQuery{City: c.Query("city"), Lang: c.Query("lang")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	city, err := h.service.ResolveCity(q.City)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	if h.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.fetchTimeout)
		defer cancel()
	}

	snapshot, err := h.service.GetForecast(ctx, city)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "no weather data for requested city")
		case errors.Is(err, context.DeadlineExceeded):
			return fiber.NewError(fiber.StatusGatewayTimeout, "timed out fetching weather data")
		}
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data")
	}

	locale := weather.MatchLocale(q.Lang, c.Get(fiber.HeaderAcceptLanguage), h.locale)

	var current *weather.DisplayCurrent
	if snapshot.Current != nil {
		dc := weather.ToDisplayCurrent(*snapshot.Current, locale)
		current = &dc
	}

	return c.JSON(forecastResponse{
		City:        snapshot.City,
		FetchedAt:   snapshot.FetchedAt,
		Locale:      locale.Tag.String(),
		NoData:      len(snapshot.Days) == 0,
		Current:     current,
		Days:        weather.ToDisplayAll(snapshot.Days, locale),
		Diagnostics: snapshot.Diagnostics,
	})
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	City string
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

func (h *Handlers) history(c *fiber.Ctx) error {
	var q historyQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	snapshots, err := h.service.GetHistory(q.City, q.From, q.To)
	if err != nil {
		switch {
		case errors.Is(err, weather.ErrUnknownCity):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
	}

	return c.JSON(fiber.Map{
		"city":      snapshots[0].City,
		"from":      q.From,
		"to":        q.To,
		"snapshots": snapshots,
	})
}

// locateQuery holds query parameters for the locate endpoint.
type locateQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`
}

func (h *Handlers) locate(c *fiber.Ctx) error {
	q := locateQuery{Lat: c.Query("lat"), Lon: c.Query("lon")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	// Both already passed the latitude/longitude checks.
	lat, _ := strconv.ParseFloat(q.Lat, 64)
	lon, _ := strconv.ParseFloat(q.Lon, 64)

	return c.JSON(h.locator.Locate(c.UserContext(), lat, lon))
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
