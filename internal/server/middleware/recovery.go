package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/gophauth/pkg/api"
)

// InternalErrorMessage is returned to clients when a handler panics
const InternalErrorMessage = "internal server error"

// RecoveryMiddleware recovers from handler panics, logs the stack trace and
// answers 500 with a generic JSON error
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(api.ErrorResponse{
						ErrorKind: "InternalError",
						Message:   InternalErrorMessage,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
