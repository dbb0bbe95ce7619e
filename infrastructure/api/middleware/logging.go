// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/helixml/pantry/internal/log"
)

// Header names read and written by the middleware.
const (
	CorrelationHeader = "X-Correlation-ID"
	ViewerHeader      = "X-User-ID"
)

// Logging returns a middleware that tags the request context with request
// and correlation IDs and logs each completed request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := log.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			if id := r.Header.Get(CorrelationHeader); id != "" {
				ctx = log.WithCorrelationID(ctx, id)
			}
			ctx = log.EnsureCorrelationID(ctx)
			w.Header().Set(CorrelationHeader, log.CorrelationID(ctx))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.InfoContext(ctx, "request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

// ViewerID returns the caller's user ID from the X-User-ID header. Identity
// is established upstream; an empty value means an anonymous caller.
func ViewerID(r *http.Request) string {
	return r.Header.Get(ViewerHeader)
}
