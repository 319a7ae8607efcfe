package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// Service defines the read operations over persisted records.
type Service interface {
	History(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error)
	VideoHistory(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error)
	Stats(ctx context.Context, actor id.UserID) (*models.Stats, error)
}

// Handler serves history and admin statistics.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the per-user history endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/kyc/history", h.HandleHistory)
	r.Get("/video/history", h.HandleVideoHistory)
}

// RegisterAdmin mounts the admin endpoints. The caller is expected to guard
// the router with an admin role check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/stats", h.HandleStats)
}

// HandleHistory handles GET /kyc/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	records, err := h.service.History(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to fetch history",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleVideoHistory handles GET /video/history.
func (h *Handler) HandleVideoHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	records, err := h.service.VideoHistory(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to fetch video history",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleStats handles GET /admin/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to build admin stats",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
