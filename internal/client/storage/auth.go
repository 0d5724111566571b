package storage

import (
	"context"
	"time"
)

//go:generate moq -out auth_mock.go . AuthStorage

// AuthStorage persists the client session between CLI invocations
type AuthStorage interface {
	// SaveAuth replaces the stored session
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth returns the stored session or ErrAuthNotFound
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes the stored session (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated reports whether a session with a live refresh token exists
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData is the local session. RefreshToken is the value of the jid
// cookie as last set by the server.
type AuthData struct {
	Email            string `json:"email"`
	UserID           string `json:"user_id"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// AccessValid reports whether the access token is still usable at now
func (a *AuthData) AccessValid(now time.Time) bool {
	return a.AccessToken != "" && now.Unix() < a.AccessExpiresAt
}

// RefreshValid reports whether the refresh cookie is still usable at now
func (a *AuthData) RefreshValid(now time.Time) bool {
	return a.RefreshToken != "" && now.Unix() < a.RefreshExpiresAt
}
