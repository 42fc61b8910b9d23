package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger creates a middleware that logs details about each incoming
// request, including the authenticated user when it runs behind auth.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
			}
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				attrs = append(attrs, slog.String("ip", reqMeta.IP))
				if reqMeta.UserID > 0 {
					attrs = append(attrs, slog.Int64("userID", reqMeta.UserID))
				}
			}

			logger.Info("Incoming HTTP request", attrs...)
			next.ServeHTTP(w, r)
		})
	}
}
