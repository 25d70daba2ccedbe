package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig collects the dependencies and settings for NewRouter.
type RouterConfig struct {
	GraphQL *GraphQLHandler
	Health  *HealthHandler
	Limiter RateLimiter
	Logger  *slog.Logger

	Environment         string
	PlaygroundEnabled   bool
	RequestTimeout      time.Duration
	MaxRequestBodyBytes int64
}

// NewRouter builds the HTTP handler with middleware and all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(cfg.Environment))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	RegisterRoutes(r, cfg)
	return r
}

// RegisterRoutes sets up all HTTP routes on the given router.
func RegisterRoutes(r chi.Router, cfg RouterConfig) {
	r.Get("/health/live", cfg.Health.HandleLive)
	r.Get("/health/ready", cfg.Health.HandleReady)

	r.Route("/graphql", func(r chi.Router) {
		r.With(
			RequestSizeLimit(cfg.MaxRequestBodyBytes),
			RateLimit(cfg.Limiter),
		).Post("/", cfg.GraphQL.HandleQuery)

		if cfg.PlaygroundEnabled {
			r.Get("/", cfg.GraphQL.HandlePlayground)
		}
	})
}
