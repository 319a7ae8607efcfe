package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"kycbuster/internal/platform/jwttoken"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/platform/httputil"
	"kycbuster/pkg/requestcontext"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*jwttoken.Identity, error)
}

// AuditPublisher receives access-denied events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user ID and role in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			identity, err := validator.Validate(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithUserID(ctx, identity.UserID)
			if identity.Role != "" {
				ctx = requestcontext.WithRole(ctx, identity.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the admin role. Every rejection is
// audited; auditor may be nil.
func RequireAdmin(auditor AuditPublisher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.IsAdmin(ctx) {
				next.ServeHTTP(w, r)
				return
			}

			userID := requestcontext.UserID(ctx)
			logger.WarnContext(ctx, "admin access denied",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"path", r.URL.Path,
			)
			if auditor != nil {
				err := auditor.Emit(ctx, audit.Event{
					UserID:    userID,
					Subject:   r.URL.Path,
					Action:    string(audit.EventAdminAccessDenied),
					Decision:  "denied",
					Reason:    "admin role required",
					RequestID: requestcontext.RequestID(ctx),
					ActorID:   userID.String(),
				})
				if err != nil {
					logger.ErrorContext(ctx, "failed to emit audit event",
						"action", audit.EventAdminAccessDenied,
						"error", err,
					)
				}
			}
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		})
	}
}
