// Package server assembles the Fiber application: middleware, routes and error rendering.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"catalog/internal/handlers"
	"catalog/internal/metrics"
	"catalog/internal/middleware"
	"catalog/internal/response"
	"catalog/internal/services"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options carries everything New needs to build the app.
type Options struct {
	Products *services.ProductService
	Log      zerolog.Logger
	// Diagnostics enables the /error-test route.
	Diagnostics bool
	// HealthChecks are run by GET /health, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// New builds the Fiber app with all routes registered.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "catalog",
		DisableStartupMessage: true,
		Views:                 views.NewEngine(),
		ErrorHandler:          errorHandler(opts.Log),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(opts.Log))
	app.Use(metrics.Middleware())

	app.Get("/health", healthHandler(opts.HealthChecks))
	app.Get("/metrics", metrics.Handler())

	handlers.NewPageHandler(opts.Products, opts.Diagnostics).RegisterRoutes(app)
	handlers.NewProductHandler(opts.Products, opts.Log).RegisterRoutes(app.Group(apiPrefix))

	return app
}

// errorHandler renders errors that escaped a handler: a JSON envelope under /api and
// the HTML error page everywhere else.
func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		// Internal details stay in the log.
		message := "An unexpected error occurred."
		if code < fiber.StatusInternalServerError {
			message = fe.Message
		} else {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		}

		if isAPI(c.Path()) {
			return c.Status(code).JSON(apiError(code, message))
		}

		renderErr := c.Status(code).Render(views.ErrorPage, views.ErrorData{
			Status:  code,
			Title:   http.StatusText(code),
			Message: message,
		})
		if renderErr != nil {
			log.Error().Err(renderErr).Msg("failed to render error page")
			return c.Status(code).SendString(http.StatusText(code))
		}
		return nil
	}
}

func isAPI(path string) bool {
	return path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/")
}

func apiError(code int, message string) response.Envelope[any] {
	switch code {
	case fiber.StatusNotFound:
		return response.Failure(response.StatusNotFound, "Not Found",
			response.NewErrorDetail(response.TypeNotFound, "Not Found", message, response.StatusNotFound))
	case fiber.StatusMethodNotAllowed:
		return response.Failure(response.StatusMethodNotAllowed, "Method Not Allowed",
			response.NewErrorDetail(response.TypeNotAllowed, "Method Not Allowed", message, response.StatusMethodNotAllowed))
	}
	if code < fiber.StatusInternalServerError {
		return response.Failure(response.StatusBadRequest, "Bad Request",
			response.NewErrorDetail(response.TypeBadRequest, "Bad Request", message, response.StatusBadRequest))
	}
	return response.ServerError(message)
}

func healthHandler(checks map[string]HealthCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := "healthy"
		code := fiber.StatusOK
		components := make(fiber.Map, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				components[name] = err.Error()
				status = "unhealthy"
				code = fiber.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status":     status,
			"time":       time.Now().Format(time.RFC3339),
			"components": components,
		})
	}
}
