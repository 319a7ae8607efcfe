// Package handler exposes the standalone video pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	"kycbuster/internal/video"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

type Service interface {
	Analyze(ctx context.Context, userID id.UserID, name string, clip evidence.Media) (*models.VideoAnalysisRecord, error)
	Save(ctx context.Context, userID id.UserID, name string, verdict evidence.VideoVerdict) (*models.VideoAnalysisRecord, error)
	MaxBytes() int
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/video/analyze", h.HandleAnalyze)
	r.Post("/video/analysis", h.HandleSave)
}

// AnalyzeRequest is the body of POST /video/analyze.
type AnalyzeRequest struct {
	VideoName string                `json:"videoName"`
	Video     evidence.EncodedMedia `json:"video"`

	clip evidence.Media
}

func (r *AnalyzeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	clip, err := r.Video.Decode("video")
	if err != nil {
		return err
	}
	r.clip = clip
	return nil
}

// SaveRequest is the body of POST /video/analysis: a verdict the client
// already obtained.
type SaveRequest struct {
	VideoName       string                `json:"videoName"`
	IsDeepfake      bool                  `json:"isDeepfake"`
	RiskLevel       evidence.RiskLevel    `json:"riskLevel"`
	ConfidenceScore int                   `json:"confidenceScore"`
	AnalysisPayload evidence.VideoVerdict `json:"analysisPayload"`
}

func (r *SaveRequest) Normalize() {
	r.VideoName = strings.TrimSpace(r.VideoName)
	r.RiskLevel = evidence.RiskLevel(strings.ToLower(strings.TrimSpace(string(r.RiskLevel))))
}

func (r *SaveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.VideoName == "" {
		return dErrors.New(dErrors.CodeValidation, "videoName is required")
	}
	return r.Verdict().ValidateScores()
}

// Verdict merges the top-level summary fields over the payload; the summary
// is what history and stats read.
func (r *SaveRequest) Verdict() evidence.VideoVerdict {
	v := r.AnalysisPayload
	v.IsDeepfake = r.IsDeepfake
	v.RiskLevel = r.RiskLevel
	v.ConfidenceScore = r.ConfidenceScore
	return v
}

// HandleAnalyze handles POST /video/analyze.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepareLimit[AnalyzeRequest](w, r, bodyLimit(h.service.MaxBytes()), h.logger, ctx, requestID)
	if !ok {
		return
	}
	record, err := h.service.Analyze(ctx, userID, req.VideoName, req.clip)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleSave handles POST /video/analysis.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SaveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if _, err := h.service.Save(ctx, userID, req.VideoName, req.Verdict()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// bodyLimit allows a base64 clip of maxBytes plus room for the envelope.
// Oversized clips still decode so the service can reject them with a
// size-specific error.
func bodyLimit(maxBytes int) int64 {
	return int64(maxBytes)/3*4 + 8<<20
}

var _ Service = (*video.Service)(nil)
