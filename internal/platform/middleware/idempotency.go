package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"kycbuster/internal/platform/metrics"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// IdempotencyHeader names the client-supplied key.
const IdempotencyHeader = "Idempotency-Key"

const (
	idempotencyPending = "pending"
	maxIdempotencyKey  = 200
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first response for a repeated Idempotency-Key
// from the same user on the same route. Requests without the header pass
// through untouched. A key whose first request is still running is answered
// with a conflict; a key whose first request failed with a 5xx is released so
// the client can retry.
func Idempotency(client redis.Cmdable, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
				return
			}

			ctx := r.Context()
			cacheKey := "idempotency:" + requestcontext.UserID(ctx).String() + ":" + r.Method + ":" + r.URL.Path + ":" + key

			acquired, err := client.SetNX(ctx, cacheKey, idempotencyPending, ttl).Result()
			if err != nil {
				logger.ErrorContext(ctx, "idempotency store unavailable, serving request without it",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				replay(w, r, client, cacheKey, m, logger)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				if err := client.Del(ctx, cacheKey).Err(); err != nil {
					logger.WarnContext(ctx, "failed to release idempotency key", "error", err)
				}
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err == nil {
				err = client.Set(ctx, cacheKey, payload, ttl).Err()
			}
			if err != nil {
				logger.WarnContext(ctx, "failed to store idempotent response",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, client redis.Cmdable, cacheKey string, m *metrics.Metrics, logger *slog.Logger) {
	ctx := r.Context()
	raw, err := client.Get(ctx, cacheKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired or released between SETNX and GET.
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "request with this Idempotency-Key is in progress, retry"))
		return
	case err != nil:
		logger.ErrorContext(ctx, "failed to read idempotent response", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "idempotency store unavailable"))
		return
	}
	if string(raw) == idempotencyPending {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "request with this Idempotency-Key is in progress"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.ErrorContext(ctx, "corrupt idempotent response", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt idempotent response"))
		return
	}
	m.IncrementIdempotentReplay()
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// recordingWriter passes the response through while keeping a copy.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(status int) {
	if !rw.wroteHeader {
		rw.status = status
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
