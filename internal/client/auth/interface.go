package auth

import (
	"context"

	"github.com/iudanet/gophauth/internal/client/api"
	"github.com/iudanet/gophauth/internal/client/storage"
	pkgapi "github.com/iudanet/gophauth/pkg/api"
)

//go:generate moq -out api_mock.go . APIClient

// APIClient is the subset of the HTTP client the session service uses
type APIClient interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*api.Session, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*api.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*api.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, accessToken string) (*pkgapi.User, error)
	Revoke(ctx context.Context, accessToken string) (int, error)
	RequestPasswordReset(ctx context.Context, email string) error
	PerformPasswordReset(ctx context.Context, token, newPassword string) error
	GetProfile(ctx context.Context, accessToken string) (*pkgapi.User, error)
	UpdateProfile(ctx context.Context, accessToken string, req pkgapi.ProfileRequest) (*pkgapi.User, error)
	ListUsers(ctx context.Context, accessToken string) ([]pkgapi.User, error)
}

//go:generate moq -out service_mock.go . Service

// Service manages the local session: it talks to the server and keeps the
// token pair in client storage.
type Service interface {
	// Register creates an account and stores the new session
	Register(ctx context.Context, email, password string) (*storage.AuthData, error)

	// Login authenticates and stores the new session
	Login(ctx context.Context, email, password string) (*storage.AuthData, error)

	// Logout clears the server cookie (best effort) and the local session
	Logout(ctx context.Context) error

	// Refresh rotates the token pair. A rejected cookie ends the local
	// session and returns ErrSessionExpired.
	Refresh(ctx context.Context) (*storage.AuthData, error)

	// Me returns the current user as the server sees it
	Me(ctx context.Context) (*pkgapi.User, error)

	// Revoke logs out every device and drops the local session
	Revoke(ctx context.Context) (int, error)

	// RequestPasswordReset asks the server to email a reset link
	RequestPasswordReset(ctx context.Context, email string) error

	// PerformPasswordReset sets a new password. input is a raw token, an
	// rpt value or the full link from the email.
	PerformPasswordReset(ctx context.Context, input, newPassword string) error

	// Status returns the stored session or storage.ErrAuthNotFound
	Status(ctx context.Context) (*storage.AuthData, error)

	// Profile, UpdateProfile and Users call the bearer-protected endpoints
	Profile(ctx context.Context) (*pkgapi.User, error)
	UpdateProfile(ctx context.Context, firstName, lastName string) (*pkgapi.User, error)
	Users(ctx context.Context) ([]pkgapi.User, error)
}
