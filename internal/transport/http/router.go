// Package httptransport assembles the HTTP surface: the shared middleware
// chain, the authenticated API routes, the admin group and the operational
// endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"kycbuster/internal/platform/metrics"
	"kycbuster/internal/platform/middleware"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/platform/middleware/metadata"
	"kycbuster/pkg/platform/middleware/requesttime"
)

// Routes mounts a feature's authenticated endpoints.
type Routes interface {
	Register(r chi.Router)
}

// AdminRoutes mounts endpoints that require the admin role.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config carries everything NewRouter wires together. Idempotency,
// RateLimit and Metrics may be nil.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Tokens         middleware.TokenValidator
	Auditor        middleware.AuditPublisher
	Idempotency    redis.Cmdable
	IdempotencyTTL time.Duration
	RateLimit      func(http.Handler) http.Handler
	Health         map[string]HealthCheck

	Routes []Routes
	Admin  []AdminRoutes
}

// NewRouter builds the application router. /health and /metrics are public;
// everything else requires a bearer token.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.AccessLog(cfg.Logger, cfg.Metrics))

	r.Get("/health", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Tokens, cfg.Logger))
		if cfg.Idempotency != nil {
			r.Use(middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, cfg.Metrics, cfg.Logger))
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		for _, routes := range cfg.Routes {
			routes.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.Auditor, cfg.Logger))
			for _, routes := range cfg.Admin {
				routes.RegisterAdmin(r)
			}
		})
	})
	return r
}

// healthHandler reports ok only when every check passes. Check errors are
// never echoed to the caller.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = "unavailable"
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
