package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/evaluation"
	"github.com/spigell/candidate-vetter/internal/links"
)

const (
	appName = "candidate-vetter"

	defaultRequests       = 20
	defaultWindow         = time.Minute
	defaultRequestTimeout = 5 * time.Minute
	defaultBodyLimit      = 1 << 20
)

type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Report, error)
}

// Options configures the HTTP surface. Zero values fall back to defaults.
type Options struct {
	Listen string `mapstructure:"listen"`
	// Requests per Window per client IP on the API routes.
	Requests       int           `mapstructure:"requests"`
	Window         time.Duration `mapstructure:"window"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	BodyLimit      int           `mapstructure:"body-limit"`
}

type errorBody struct {
	Error   errs.Kind `json:"error"`
	Message string    `json:"message"`
}

type linksRequest struct {
	Text string `json:"text"`
}

type handler struct {
	evaluator Evaluator
	timeout   time.Duration
	logger    *zap.Logger
}

// New builds the fiber app with health probes at /livez and /readyz and the
// API under /api/v1.
func New(ev Evaluator, opts Options, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Requests <= 0 {
		opts.Requests = defaultRequests
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(accessLog(log))
	app.Use(healthcheck.New())

	h := &handler{evaluator: ev, timeout: opts.RequestTimeout, logger: log}

	api := app.Group("/api/v1", limiter.New(limiter.Config{
		Max:               opts.Requests,
		Expiration:        opts.Window,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(*fiber.Ctx) error {
			return errs.Newf(errs.Limited, "api", "too many requests")
		},
	}))
	api.Post("/evaluations", h.evaluate)
	api.Post("/links", h.links)

	return app
}

func (h *handler) evaluate(c *fiber.Ctx) error {
	var req evaluation.Request
	if err := c.BodyParser(&req); err != nil {
		return errs.New(errs.InvalidInput, "decode request", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	report, err := h.evaluator.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *handler) links(c *fiber.Ctx) error {
	var req linksRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.New(errs.InvalidInput, "decode request", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return errs.Newf(errs.InvalidInput, "extract links", "text is required")
	}
	return c.JSON(links.Extract(req.Text))
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		kind, code := classify(err)

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(errorBody{Error: kind, Message: err.Error()})
	}
}

func classify(err error) (errs.Kind, int) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return kindForStatus(fe.Code), fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Timeout, fiber.StatusGatewayTimeout
	}

	kind := errs.KindOf(err)
	switch kind {
	case errs.InvalidInput:
		return kind, fiber.StatusBadRequest
	case errs.NotFound:
		return kind, fiber.StatusNotFound
	case errs.Limited, errs.RateLimited:
		return kind, fiber.StatusTooManyRequests
	case errs.Timeout:
		return kind, fiber.StatusGatewayTimeout
	case errs.Malformed:
		return kind, fiber.StatusBadGateway
	case errs.KindUnknown:
		return errs.Unavailable, fiber.StatusInternalServerError
	default:
		return kind, fiber.StatusInternalServerError
	}
}

func kindForStatus(code int) errs.Kind {
	switch {
	case code == fiber.StatusNotFound:
		return errs.NotFound
	case code == fiber.StatusTooManyRequests:
		return errs.Limited
	case code == fiber.StatusGatewayTimeout, code == fiber.StatusRequestTimeout:
		return errs.Timeout
	case code >= 400 && code < 500:
		return errs.InvalidInput
	default:
		return errs.Unavailable
	}
}

func accessLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			_, status = classify(err)
		}
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}
