package testutil

import (
	"net/http"

	id "kycbuster/pkg/domain"
	"kycbuster/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, as the auth middleware
// would for an authenticated request. Invalid IDs are silently ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithAuth adds a user ID and role to the request context.
func WithAuth(req *http.Request, userID, role string) *http.Request {
	ctx := req.Context()
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsedUserID)
	}
	if role != "" {
		ctx = requestcontext.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}
