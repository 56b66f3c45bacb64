// Package middleware holds cross-cutting HTTP middleware.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"trackguard/pkg/requestcontext"
)

// RequestIDHeader carries the correlation ID on responses and may supply one
// on requests from trusted proxies.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns each request a correlation ID, stores it in the context
// for handlers and services, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
