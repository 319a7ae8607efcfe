package httputil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycbuster/pkg/domain-errors"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type detailsRequest struct {
	FullName string `json:"fullName"`
}

func (r *detailsRequest) Normalize() { r.FullName = strings.TrimSpace(r.FullName) }

func (r *detailsRequest) Validate() error {
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "fullName is required")
	}
	return nil
}

func decode(body string, limit int64) (*detailsRequest, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/kyc/details", strings.NewReader(body))
	got, _ := DecodeAndPrepareLimit[detailsRequest](w, r, limit, discard, context.Background(), "req-1")
	return got, w
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "insert record"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestWriteErrorIncludesDescription(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.New(dErrors.CodeInvariantViolation, "document must be verified first"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"invariant_violation","error_description":"document must be verified first"}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	for code, status := range map[dErrors.Code]int{
		dErrors.CodeValidation:          http.StatusBadRequest,
		dErrors.CodeUnauthorized:        http.StatusUnauthorized,
		dErrors.CodeForbidden:           http.StatusForbidden,
		dErrors.CodeNotFound:            http.StatusNotFound,
		dErrors.CodeResourceUnavailable: http.StatusConflict,
		dErrors.CodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
		dErrors.CodeRateLimited:         http.StatusTooManyRequests,
		dErrors.CodeUnavailable:         http.StatusServiceUnavailable,
		dErrors.CodeBadGateway:          http.StatusBadGateway,
		dErrors.CodeTimeout:             http.StatusGatewayTimeout,
		dErrors.CodePersistence:         http.StatusInternalServerError,
	} {
		assert.Equal(t, status, StatusFor(code), string(code))
	}
}

func TestDecodeAndPrepareLimit(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		got, w := decode(`{"fullName":"  Ada Lovelace "}`, MaxJSONBody)
		require.NotNil(t, got, w.Body.String())
		assert.Equal(t, "Ada Lovelace", got.FullName)
	})

	t.Run("validation failure is written", func(t *testing.T) {
		got, w := decode(`{"fullName":"   "}`, MaxJSONBody)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("malformed json", func(t *testing.T) {
		got, w := decode(`{"fullName":`, MaxJSONBody)
		assert.Nil(t, got)
		assert.Contains(t, w.Body.String(), "bad_request")
	})

	t.Run("oversized body", func(t *testing.T) {
		got, w := decode(`{"fullName":"`+strings.Repeat("a", 64)+`"}`, 16)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
