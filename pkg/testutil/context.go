package testutil

import (
	"net/http"

	id "tunelink/pkg/domain"
	"tunelink/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, simulating what the
// identity middleware does for authenticated requests. Invalid IDs are
// silently ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
