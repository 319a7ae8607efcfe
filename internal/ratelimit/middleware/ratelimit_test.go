package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycbuster/internal/ratelimit/models"
	"kycbuster/internal/ratelimit/store/bucket"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("store down")
}

func serve(h http.Handler, method string, user id.UserID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/kyc/document", nil)
	req = req.WithContext(requestcontext.WithUserID(req.Context(), user))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestRateLimitWrites(t *testing.T) {
	mw := New(bucket.New(), 2, time.Minute, discard)
	h := mw.RateLimitWrites(okHandler())
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	t.Run("writes within the limit pass with headers", func(t *testing.T) {
		rec := serve(h, http.MethodPost, alice)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("excess writes are rejected", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, serve(h, http.MethodPost, alice).Code)
		rec := serve(h, http.MethodPost, alice)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "rate_limited")
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("reads are never limited", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, serve(h, http.MethodGet, alice).Code)
	})

	t.Run("users have separate buckets", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, serve(h, http.MethodPost, bob).Code)
	})
}

func TestRateLimitWritesFailsOpen(t *testing.T) {
	h := New(failingLimiter{}, 1, time.Minute, discard).RateLimitWrites(okHandler())
	for range 3 {
		assert.Equal(t, http.StatusNoContent, serve(h, http.MethodPost, id.UserID(uuid.New())).Code)
	}
}

func TestRetryAfterIsAtLeastOneSecond(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1, models.Result{ResetAt: now}.RetryAfter(now))
	assert.Equal(t, 3, models.Result{ResetAt: now.Add(2500 * time.Millisecond)}.RetryAfter(now))
}
