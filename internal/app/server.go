package app

import (
	"database/sql"
	"log/slog"
	"net/url"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droplink/docs"
	"droplink/internal/config"
	handlers "droplink/internal/http/handler"
	"droplink/internal/http/middleware"
	"droplink/internal/service"
)

// NewHTTPApp builds the Fiber application with tracing, request ids, access
// logging, metrics, swagger and the file routes.
func NewHTTPApp(cfg *config.AppConfig, db *sql.DB, svc service.ArtifactService, logger *slog.Logger, reg *prometheus.Registry) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:      "droplink",
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxUploadMB * 1024 * 1024,
	})

	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(prom.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	configureSwagger(cfg)
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.RegisterRoutes(app, db, svc)
	return app, nil
}

// configureSwagger points the served doc at the public base URL. It runs once
// at startup; the doc globals are read-only while serving.
func configureSwagger(cfg *config.AppConfig) {
	host, scheme := cfg.AppHost, "http"
	if u, err := url.Parse(cfg.Link.BaseURL); err == nil && u.Host != "" {
		host, scheme = u.Host, u.Scheme
	}
	docs.SwaggerInfo.Host = host
	docs.SwaggerInfo.Schemes = []string{scheme}
}
