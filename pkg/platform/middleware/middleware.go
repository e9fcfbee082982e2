// Package middleware holds the HTTP middleware chain: request metadata and
// caller identity. Authentication itself happens upstream at the gateway;
// this service trusts the identity header it forwards.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/httputil"
	"tunelink/pkg/requestcontext"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
)

// RequestMetadata stamps the context with a request id (taken from the
// X-Request-ID header or generated) and the request arrival time.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser parses the forwarded identity header into the context and
// rejects requests without one.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := id.ParseUserID(r.Header.Get(headerUserID))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
			return
		}
		ctx := requestcontext.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
