package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weather-recorder/internal/metrics"
	"github.com/i474232898/weather-recorder/internal/weather"
)

const (
	serviceName  = "weather-recorder"
	defaultLimit = 10
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, store weather.Store) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/readings/latest", func(c *fiber.Ctx) error {
		var q latestQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		readings, err := store.LatestReadings(c.UserContext(), q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load readings")
		}
		if readings == nil {
			readings = []weather.Reading{}
		}

		return c.JSON(fiber.Map{
			"count":    len(readings),
			"readings": readings,
		})
	})
}

// latestQuery holds query parameters for the latest readings endpoint.
type latestQuery struct {
	Limit int `validate:"gte=1,lte=100"`
}

func (q *latestQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("limit")
	if raw == "" {
		q.Limit = defaultLimit
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	q.Limit = n
	return nil
}

// NewApp builds the Fiber app with the recorder's error handling.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
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
}
