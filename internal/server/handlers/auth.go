package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/pkg/api"
)

// AuthService is the session manager used by the handlers
type AuthService interface {
	Register(ctx context.Context, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error)
	Me(ctx context.Context, accessToken string) *models.User
	RevokeSessions(ctx context.Context, userID string) (int, error)
	RequestPasswordReset(ctx context.Context, email string) error
	PerformPasswordReset(ctx context.Context, token, newPassword string) error
}

// AuthHandler serves the authentication API
type AuthHandler struct {
	logger  *slog.Logger
	service AuthService
	cookie  CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(logger *slog.Logger, service AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
		cookie:  cookie,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		sendServiceError(r.Context(), h.logger, w, err)
		return
	}

	h.startSession(w, session, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		sendServiceError(r.Context(), h.logger, w, err)
		return
	}

	h.startSession(w, session, http.StatusOK)
}

// Logout handles POST /api/v1/auth/logout. It only clears the refresh
// cookie, other sessions stay valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearRefreshCookie(w, h.cookie)
	sendJSON(h.logger, w, api.OKResponse{OK: true}, http.StatusOK)
}

// Refresh handles POST /refresh_token. The refresh token comes from the jid
// cookie; any rejection is answered with ok=false.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var token string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}

	result, err := h.service.Refresh(ctx, token)
	if err != nil {
		sendServiceError(ctx, h.logger, w, err)
		return
	}

	if !result.OK {
		sendJSON(h.logger, w, api.RefreshResponse{OK: false}, http.StatusOK)
		return
	}

	setRefreshCookie(w, h.cookie, result.RefreshToken)
	sendJSON(h.logger, w, api.RefreshResponse{OK: true, AccessToken: result.AccessToken}, http.StatusOK)
}

// Me handles GET /api/v1/auth/me. A missing or invalid token yields a null user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.service.Me(r.Context(), bearerToken(r))

	resp := api.MeResponse{}
	if user != nil {
		u := toAPIUser(user)
		resp.User = &u
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Revoke handles POST /api/v1/auth/revoke, logging the caller out of every device
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		sendError(h.logger, w, auth.KindAuth, "not authenticated", http.StatusUnauthorized)
		return
	}

	version, err := h.service.RevokeSessions(ctx, userID)
	if err != nil {
		sendServiceError(ctx, h.logger, w, err)
		return
	}

	clearRefreshCookie(w, h.cookie)
	sendJSON(h.logger, w, api.RevokeResponse{TokenVersion: version}, http.StatusOK)
}

// RequestPasswordReset handles POST /api/v1/auth/password/reset-request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req api.ResetRequestRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		sendServiceError(r.Context(), h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.OKResponse{OK: true}, http.StatusOK)
}

// PerformPasswordReset handles POST /api/v1/auth/password/reset
func (h *AuthHandler) PerformPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPerformRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	if err := h.service.PerformPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		sendServiceError(r.Context(), h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.OKResponse{OK: true}, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, session *auth.Session, statusCode int) {
	setRefreshCookie(w, h.cookie, session.RefreshToken)
	sendJSON(h.logger, w, api.AuthResponse{
		AccessToken: session.AccessToken,
		User:        toAPIUser(session.User),
	}, statusCode)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
