package handler

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/dmitrymomot/raisekit/pkg/logger"
)

const (
	RequestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

var (
	requestIDKey   = NewContextKey("request_id")
	validRequestID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// RequestID reuses a well-formed X-Request-ID header or generates a new
// UUID, stores it in the request context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if len(id) == 0 || len(id) > maxRequestIDLength || !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	return ContextValue[string](ctx, requestIDKey)
}

// RequestIDExtractor adds the request id to log records.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := RequestIDFromContext(ctx); id != "" {
			return logger.RequestID(id), true
		}
		return slog.Attr{}, false
	}
}
