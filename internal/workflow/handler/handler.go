// Package handler exposes the verification session state machine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kycbuster/internal/workflow"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// Service is the session registry as seen by the HTTP layer.
type Service interface {
	Start(userID id.UserID) (workflow.View, error)
	View(userID id.UserID, sessionID id.SessionID) (workflow.View, error)
	Dispatch(ctx context.Context, userID id.UserID, sessionID id.SessionID, cmd workflow.Command) (workflow.View, error)
	Abandon(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the session endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/kyc/sessions", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleAbandon)
			r.Put("/details", h.HandleDetails)
			r.Put("/document", h.HandleUploadDocument)
			r.Post("/document/verify", h.command(func() workflow.Command { return workflow.VerifyDocument{} }))
			r.Post("/liveness", h.HandleLiveness)
			r.Post("/voice", h.HandleVoice)
			r.Post("/finalize", h.command(func() workflow.Command { return workflow.Finalize{} }))
			r.Post("/next", h.command(func() workflow.Command { return workflow.Next{} }))
			r.Post("/back", h.command(func() workflow.Command { return workflow.Back{} }))
		})
	})
}

// HandleStart handles POST /kyc/sessions.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	view, err := h.service.Start(userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "verification session started",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"session_id", view.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /kyc/sessions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	view, err := h.service.View(userID, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleAbandon handles DELETE /kyc/sessions/{id}. Nothing is persisted.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Abandon(r.Context(), userID, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDetails handles PUT /kyc/sessions/{id}/details.
func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DetailsRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.dispatch(w, r, userID, sessionID, workflow.SubmitDetails{Details: req.Details()})
}

// HandleUploadDocument handles PUT /kyc/sessions/{id}/document.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DocumentRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.dispatch(w, r, userID, sessionID, workflow.UploadDocument{Image: req.media})
}

// HandleLiveness handles POST /kyc/sessions/{id}/liveness.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LivenessRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.dispatch(w, r, userID, sessionID, workflow.VerifyLiveness{Capture: req.capture})
}

// HandleVoice handles POST /kyc/sessions/{id}/voice. A successful voice
// check finalizes the session in the same request.
func (h *Handler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VoiceRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.dispatch(w, r, userID, sessionID, workflow.VerifyVoice{Audio: req.media})
}

// command adapts a body-less command to a handler.
func (h *Handler) command(build func() workflow.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, sessionID, ok := h.target(w, r)
		if !ok {
			return
		}
		h.dispatch(w, r, userID, sessionID, build())
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, userID id.UserID, sessionID id.SessionID, cmd workflow.Command) {
	view, err := h.service.Dispatch(r.Context(), userID, sessionID, cmd)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// target resolves the caller and the session path parameter, writing the
// error response itself when either is missing.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (id.UserID, id.SessionID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, id.SessionID{}, false
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, id.SessionID{}, false
	}
	return userID, sessionID, true
}

var _ Service = (*workflow.Registry)(nil)
