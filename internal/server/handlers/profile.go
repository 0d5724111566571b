package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/pkg/api"
)

// ProfileService reads and edits user profiles
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, profile models.Profile) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// ProfileHandler serves profile and user listing endpoints. All routes
// require AuthMiddleware.
type ProfileHandler struct {
	logger  *slog.Logger
	service ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(logger *slog.Logger, service ProfileService) *ProfileHandler {
	return &ProfileHandler{logger: logger, service: service}
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		sendError(h.logger, w, auth.KindAuth, "not authenticated", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		sendServiceError(ctx, h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, toAPIUser(user), http.StatusOK)
}

// Update handles PUT /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		sendError(h.logger, w, auth.KindAuth, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req api.ProfileRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(ctx, userID, models.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		sendServiceError(ctx, h.logger, w, err)
		return
	}

	h.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID))

	sendJSON(h.logger, w, toAPIUser(user), http.StatusOK)
}

// ListUsers handles GET /api/v1/users
func (h *ProfileHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		sendServiceError(r.Context(), h.logger, w, err)
		return
	}

	resp := api.UsersResponse{Users: make([]api.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toAPIUser(u))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
