package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/caci-forecaster/internal/forecast"
	"github.com/i474232898/caci-forecaster/internal/pipeline"
	"github.com/i474232898/caci-forecaster/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, transformer *forecast.Transformer, runs *store.MemoryStore) {
	predict := forecastHandler(transformer)
	app.Post(pipeline.TransformPath, predict)

	v1 := app.Group("/api/v1")
	v1.Post("/forecast", predict)

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		out, err := runs.GetLatest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no pipeline run has completed yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run status")
		}
		return c.JSON(out)
	})

	v1.Get("/runs/last-published", func(c *fiber.Ctx) error {
		out, err := runs.GetLastPublished()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast has been published yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run status")
		}
		return c.JSON(out)
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		var req runsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		outcomes, err := runs.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no pipeline runs for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run history")
		}

		return c.JSON(fiber.Map{
			"from": req.From,
			"to":   req.To,
			"runs": outcomes,
		})
	})
}

// forecastHandler serves the transform. Errors keep the {"error": ...}
// shape with a status that tells bad input from an unavailable model.
func forecastHandler(transformer *forecast.Transformer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !transformer.Available() {
			return transformError(c, forecast.ErrModelUnavailable)
		}

		reading, err := forecast.ParseReading(c.Body())
		if err != nil {
			return transformError(c, err)
		}

		v, err := transformer.Forecast(c.UserContext(), reading)
		if err != nil {
			return transformError(c, err)
		}

		return c.JSON(fiber.Map{
			"status":             "success",
			"predicted_caci_1hr": float64(v),
		})
	}
}

func transformError(c *fiber.Ctx, err error) error {
	kind := forecast.KindOf(err)
	if kind == "" {
		kind = forecast.KindModelInference
	}
	body := fiber.Map{
		"error": err.Error(),
		"kind":  kind,
	}
	if kind == forecast.KindInputShape {
		body["message"] = "Input data format is wrong."
	}
	return c.Status(forecast.HTTPStatus(kind)).JSON(body)
}

// runsQuery holds query parameters for the run history endpoint.
type runsQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *runsQuery) bind(c *fiber.Ctx) error {
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
