package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycbuster/internal/decision"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// Service defines the finalizer operations used over HTTP.
type Service interface {
	Finalize(ctx context.Context, in decision.FinalizeInput) (*models.VerificationRecord, error)
	Persist(ctx context.Context, in decision.FinalizeInput, final evidence.FinalDecision) (*models.VerificationRecord, error)
}

// Handler wires the finalize endpoint to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/kyc/finalize", h.HandleFinalize)
}

// HandleFinalize handles POST /kyc/finalize requests.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[FinalizeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.UserID != "" && req.UserID != userID.String() {
		h.logger.WarnContext(ctx, "finalize for another user rejected",
			"request_id", requestID,
			"user_id", userID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "userId does not match the authenticated user"))
		return
	}

	var (
		record *models.VerificationRecord
		err    error
	)
	if req.FinalDecision != nil {
		record, err = h.service.Persist(ctx, req.Input(userID), *req.FinalDecision)
	} else {
		record, err = h.service.Finalize(ctx, req.Input(userID))
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "finalize failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "finalize succeeded",
		"request_id", requestID,
		"user_id", userID,
		"record_id", record.ID,
		"status", record.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

var _ Service = (*decision.Service)(nil)
