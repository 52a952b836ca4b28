package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/minutehq/usagewatch/internal/api/handlers"
	"github.com/minutehq/usagewatch/internal/api/middleware"
	"github.com/minutehq/usagewatch/internal/config"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/metrics"
)

// Handlers bundles the HTTP handlers wired into the router
type Handlers struct {
	Health    *handlers.HealthHandler
	Detection *handlers.DetectionHandler
	Alert     *handlers.AlertHandler
	Policy    *handlers.PolicyHandler
}

// New builds the HTTP routing tree
func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(metrics.Middleware)
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)

		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/ready", h.Health.Readyz)
		r.Get("/readyz", h.Health.Readyz)

		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	// Protected routes (require a service token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/detection/run", h.Detection.Run)

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", h.Alert.List)
				r.Get("/active", h.Alert.Active)
				r.Get("/counts", h.Alert.Counts)
				r.Get("/{id}", h.Alert.Get)
				r.Post("/{id}/resolve", h.Alert.Resolve)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.Policy.List)
				r.Put("/{severity}", h.Policy.Update)
			})
		})
	})

	return r
}
