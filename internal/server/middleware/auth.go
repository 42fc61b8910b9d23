package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskwire/taskwire/pkg/auth"
)

// NewAuthMiddleware gates every request behind token verification. The token
// is taken from the "token" query parameter (the connection-time auth payload
// of the websocket handshake) and falls back to a standard Authorization
// bearer header; the payload wins when both are present. A missing or invalid
// token rejects the request before any session state is created.
func NewAuthMiddleware(logger *slog.Logger, verifier auth.TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
					tokenString = strings.TrimPrefix(header, "Bearer ")
				}
			}
			if tokenString == "" {
				logger.Warn("Request missing bearer token", slog.String("ip", reqMeta.IP))
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(tokenString)
			if err != nil {
				logger.Warn("Token verification failed",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = userID
			next.ServeHTTP(w, r)
		})
	}
}
