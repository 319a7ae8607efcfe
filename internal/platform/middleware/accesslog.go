package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mssola/useragent"

	"kycbuster/internal/platform/metrics"
	"kycbuster/pkg/requestcontext"
)

// AccessLog logs one line per request and records HTTP metrics. Routes are
// labelled by their chi pattern so IDs in paths do not explode cardinality.
func AccessLog(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			route := routePattern(r)
			client := ClassifyUserAgent(r.UserAgent())

			m.ObserveRequest(r.Method, route, strconv.Itoa(status), duration)
			m.IncrementClient(client.Browser, client.Platform)

			ctx := r.Context()
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "http request",
				"request_id", requestcontext.RequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"client_ip", requestcontext.ClientIP(ctx),
				"browser", client.Browser,
				"platform", client.Platform,
				"bot", client.Bot,
			)
		})
	}
}

// Client is a coarse classification of a User-Agent header.
type Client struct {
	Browser  string
	Platform string
	Bot      bool
}

// ClassifyUserAgent reduces a User-Agent to browser and platform family.
func ClassifyUserAgent(header string) Client {
	if header == "" {
		return Client{Browser: "unknown", Platform: "unknown"}
	}
	ua := useragent.New(header)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "unknown"
	}
	platform := ua.Platform()
	if platform == "" {
		platform = "unknown"
	}
	return Client{Browser: browser, Platform: platform, Bot: ua.Bot()}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
