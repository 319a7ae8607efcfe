// Package middleware throttles state-changing requests per authenticated
// user.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kycbuster/internal/ratelimit/metrics"
	"kycbuster/internal/ratelimit/models"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// Limiter admits or rejects one request against a keyed bucket.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) { mw.metrics = m }
}

func New(limiter Limiter, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimitWrites caps non-GET requests per user. Reads always pass. When the
// limiter fails the request is served unchecked.
func (m *Middleware) RateLimitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		userID := requestcontext.UserID(ctx)
		result, err := m.limiter.Allow(ctx, models.WriteKey(userID.String()), m.limit, m.window)
		if err != nil {
			m.metrics.IncrementErrors()
			m.logger.ErrorContext(ctx, "failed to check write rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			route := routePattern(r)
			m.metrics.IncrementRejections(route)
			m.logger.WarnContext(ctx, "write rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"route", route,
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(requestcontext.Now(ctx))))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
