package middleware

import (
	"net/http"
	"strings"

	"devmind/datacollector/internal/auth"
	"devmind/datacollector/internal/logging"
)

// AuthMiddleware requires an HS256 bearer token and stores its claims in the request context
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized. Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseBearerToken(secret, strings.TrimPrefix(authHeader, "Bearer "), nil)
			if err != nil {
				logging.Debug("Rejected bearer token", "request_id", RequestID(r.Context()), "error", err.Error())
				http.Error(w, "Unauthorized. Invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := auth.SetUserClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
