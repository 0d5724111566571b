package server

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/middleware"
)

// RouterConfig holds the dependencies of the HTTP routes
type RouterConfig struct {
	Logger     *slog.Logger
	Service    *auth.Service
	Verifier   middleware.AccessVerifier
	DB         handlers.Pinger
	Cookie     handlers.CookieConfig
	CORSOrigin string
	Version    string
}

// NewRouter registers every route and wraps them in the middleware chain:
// recovery, logging, CORS
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := handlers.NewAuthHandler(cfg.Logger, cfg.Service, cfg.Cookie)
	profileHandler := handlers.NewProfileHandler(cfg.Logger, cfg.Service)
	healthHandler := handlers.NewHealthHandler(cfg.Logger, cfg.DB, cfg.Version)

	requireAuth := middleware.AuthMiddleware(cfg.Logger, cfg.Verifier)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("POST /api/v1/auth/password/reset-request", authHandler.RequestPasswordReset)
	mux.HandleFunc("POST /api/v1/auth/password/reset", authHandler.PerformPasswordReset)
	mux.Handle("POST /api/v1/auth/revoke", requireAuth(http.HandlerFunc(authHandler.Revoke)))

	mux.Handle("GET /api/v1/profile", requireAuth(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PUT /api/v1/profile", requireAuth(http.HandlerFunc(profileHandler.Update)))
	mux.Handle("GET /api/v1/users", requireAuth(http.HandlerFunc(profileHandler.ListUsers)))

	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	mux.HandleFunc("POST /refresh_token", authHandler.Refresh)

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(cfg.CORSOrigin)(handler)
	handler = middleware.LoggingWithSkip(cfg.Logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(cfg.Logger)(handler)

	return handler
}
