package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/pkg/api"
)

// AccessVerifier validates access tokens
type AccessVerifier interface {
	VerifyAccess(token string) (*jwt.AccessClaims, error)
}

// AuthMiddleware requires a valid "Authorization: Bearer <access token>"
// header and stores the user ID in the request context
func AuthMiddleware(logger *slog.Logger, verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing Authorization header")
				unauthorized(w, "missing token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Warn("Invalid Authorization header format")
				unauthorized(w, "invalid token format")
				return
			}

			claims, err := verifier.VerifyAccess(parts[1])
			if err != nil {
				logger.Warn("Invalid access token", slog.Any("error", err))
				unauthorized(w, "invalid token")
				return
			}

			logger.Debug("User authenticated", slog.String("user_id", claims.UserID))

			ctx := handlers.WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{ErrorKind: "AuthError", Message: message})
}
