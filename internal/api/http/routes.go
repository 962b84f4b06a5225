package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

var validate = validator.New()

const redacted = "[redacted]"

// NewApp builds the Fiber app with centralized error handling, global
// middleware, the health endpoint and the API routes.
func NewApp(service *weather.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "openweathermap-agent",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// check and receive wait on the upstream call.
		WriteTimeout: 60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "openweathermap-agent",
		})
	})

	RegisterRoutes(app, service)
	return app
}

// RegisterRoutes wires the agent admin handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/agent", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"agent_id":   service.AgentID(),
			"configured": service.Configured(),
			"descriptor": service.Descriptor(),
			"options":    redactOptions(service.Options()),
		})
	})

	v1.Post("/agent/validate", func(c *fiber.Ctx) error {
		opts, err := parseOptions(c)
		if err != nil {
			return err
		}
		errs := weather.ValidateOptions(opts)
		return c.JSON(fiber.Map{
			"valid":  len(errs) == 0,
			"errors": nonNil(errs),
		})
	})

	v1.Put("/agent/options", func(c *fiber.Ctx) error {
		opts, err := parseOptions(c)
		if err != nil {
			return err
		}
		errs, err := service.UpdateOptions(c.UserContext(), opts)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save options")
		}
		if errs != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  true,
				"errors": errs,
			})
		}
		return c.JSON(fiber.Map{"options": redactOptions(service.Options())})
	})

	v1.Post("/agent/check", func(c *fiber.Ctx) error {
		if err := service.Check(c.UserContext()); err != nil {
			return runError("check", err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Post("/agent/receive", func(c *fiber.Ctx) error {
		var req receiveRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		events := make([]weather.Event, 0, len(req.Events))
		for _, in := range req.Events {
			events = append(events, in.toEvent())
		}
		if err := service.Receive(c.UserContext(), events); err != nil {
			return runError("receive", err)
		}
		return c.JSON(fiber.Map{"status": "ok", "received": len(events)})
	})

	v1.Post("/agent/dry_run", func(c *fiber.Ctx) error {
		var event *weather.Event
		if len(c.Body()) > 0 {
			var in eventInput
			if err := c.BodyParser(&in); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
			}
			if err := validate.Struct(in); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			ev := in.toEvent()
			event = &ev
		}

		res, err := service.DryRun(c.UserContext(), event)
		if errors.Is(err, weather.ErrNotConfigured) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "dry run failed")
		}
		return c.JSON(res)
	})

	v1.Get("/agent/working", func(c *fiber.Ctx) error {
		working, err := service.Working(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to determine agent health")
		}
		return c.JSON(fiber.Map{"working": working})
	})

	v1.Get("/events", func(c *fiber.Ctx) error {
		q, err := parseLimitQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		events, err := service.Events(c.UserContext(), q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list events")
		}
		return c.JSON(events)
	})

	v1.Get("/logs", func(c *fiber.Ctx) error {
		q, err := parseLimitQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		logs, err := service.Logs(c.UserContext(), q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list logs")
		}
		return c.JSON(logs)
	})
}

// runError maps a failed agent run to a response: 409 until the agent has
// valid options, 502 for upstream failures.
func runError(op string, err error) error {
	if errors.Is(err, weather.ErrNotConfigured) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusBadGateway, op+" failed: "+err.Error())
}

// eventInput is an inbound event as posted by an upstream agent.
type eventInput struct {
	ID      string          `json:"id" validate:"omitempty,uuid"`
	Payload json.RawMessage `json:"payload"`
}

func (in eventInput) toEvent() weather.Event {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		id = uuid.New()
	}
	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return weather.Event{ID: id, Payload: payload, CreatedAt: time.Now().UTC()}
}

// receiveRequest holds the body of the receive endpoint.
type receiveRequest struct {
	Events []eventInput `json:"events" validate:"required,min=1,dive"`
}

// limitQuery holds the paging parameter for list endpoints.
type limitQuery struct {
	Limit int `validate:"gte=1,lte=500"`
}

func parseLimitQuery(c *fiber.Ctx) (limitQuery, error) {
	q := limitQuery{Limit: c.QueryInt("limit", 50)}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseOptions(c *fiber.Ctx) (weather.Options, error) {
	var opts weather.Options
	if err := json.Unmarshal(c.Body(), &opts); err != nil || opts == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "body must be a JSON object of options")
	}
	return opts, nil
}

func redactOptions(opts weather.Options) weather.Options {
	if opts.String(weather.OptionToken) != "" {
		opts[weather.OptionToken] = redacted
	}
	return opts
}

func nonNil(errs weather.ValidationErrors) weather.ValidationErrors {
	if errs == nil {
		return weather.ValidationErrors{}
	}
	return errs
}
