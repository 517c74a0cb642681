package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"AccountPlatform/pkg/health"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/pkg/metrics"
	"AccountPlatform/services/account-service/internal/middleware"
)

// RouterOptions служебные зависимости роутера, nil отключает соответствующий маршрут
type RouterOptions struct {
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Health  health.HealthChecker
}

// NewRouter собирает chi роутер со всеми маршрутами сервиса
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggingMiddleware(log))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.GetHandler())
	}

	if opts.Health != nil {
		r.Get("/health", health.Handler(opts.Health))
	}
	r.Get("/live", health.LiveHandler())

	h.Routes(r)
	return r
}
