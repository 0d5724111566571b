package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/gophauth/internal/client/api"
	"github.com/iudanet/gophauth/internal/client/storage"
	"github.com/iudanet/gophauth/internal/validation"
	pkgapi "github.com/iudanet/gophauth/pkg/api"
)

var (
	// ErrNotAuthenticated means no local session is stored
	ErrNotAuthenticated = errors.New("not authenticated, run 'gophauth login' first")

	// ErrSessionExpired means the server rejected the refresh cookie
	ErrSessionExpired = errors.New("session expired, run 'gophauth login' again")
)

// expirySkew refreshes access tokens slightly before they expire
const expirySkew = 10 * time.Second

// SessionService implements Service on top of the HTTP client and bbolt
type SessionService struct {
	apiClient APIClient
	store     storage.AuthStorage
	logger    *slog.Logger
	now       func() time.Time
}

var _ Service = (*SessionService)(nil)

// NewService creates a session service
func NewService(apiClient APIClient, store storage.AuthStorage, logger *slog.Logger) *SessionService {
	return &SessionService{
		apiClient: apiClient,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates an account and stores the session
func (s *SessionService) Register(ctx context.Context, email, password string) (*storage.AuthData, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	session, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	return s.saveSession(ctx, session)
}

// Login authenticates and stores the session
func (s *SessionService) Login(ctx context.Context, email, password string) (*storage.AuthData, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	session, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	return s.saveSession(ctx, session)
}

// Logout clears the local session. The server call only clears the cookie
// there, so its failure does not keep the local session alive.
func (s *SessionService) Logout(ctx context.Context) error {
	data, err := s.load(ctx)
	if err != nil {
		return err
	}

	if err := s.apiClient.Logout(ctx, data.RefreshToken); err != nil {
		s.logger.WarnContext(ctx, "server logout failed", slog.Any("error", err))
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// Refresh rotates the token pair using the stored cookie
func (s *SessionService) Refresh(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.apiClient.Refresh(ctx, data.RefreshToken)
	if err != nil {
		return nil, err
	}

	if !result.OK {
		if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
			s.logger.WarnContext(ctx, "failed to drop rejected session", slog.Any("error", err))
		}
		return nil, ErrSessionExpired
	}

	data.AccessToken = result.AccessToken
	data.AccessExpiresAt = tokenExpiry(result.AccessToken)
	if result.RefreshToken != "" {
		data.RefreshToken = result.RefreshToken
		data.RefreshExpiresAt = tokenExpiry(result.RefreshToken)
	}

	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return data, nil
}

// Me returns the current user, refreshing the access token if needed
func (s *SessionService) Me(ctx context.Context) (*pkgapi.User, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.apiClient.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionExpired
	}

	return user, nil
}

// Revoke bumps the server token version, which invalidates the stored
// cookie too, so the local session is dropped
func (s *SessionService) Revoke(ctx context.Context) (int, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return 0, err
	}

	version, err := s.apiClient.Revoke(ctx, token)
	if err != nil {
		return 0, err
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return version, fmt.Errorf("failed to delete session: %w", err)
	}

	return version, nil
}

// RequestPasswordReset asks the server to email a reset link
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	return s.apiClient.RequestPasswordReset(ctx, email)
}

// PerformPasswordReset sets a new password. The server revokes every
// session on success, so any local session is dropped.
func (s *SessionService) PerformPasswordReset(ctx context.Context, input, newPassword string) error {
	token, err := ParseResetToken(input)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	if err := s.apiClient.PerformPasswordReset(ctx, token, newPassword); err != nil {
		return err
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		s.logger.WarnContext(ctx, "failed to drop revoked session", slog.Any("error", err))
	}

	return nil
}

// Status returns the stored session
func (s *SessionService) Status(ctx context.Context) (*storage.AuthData, error) {
	return s.store.GetAuth(ctx)
}

// Profile returns the caller's profile
func (s *SessionService) Profile(ctx context.Context) (*pkgapi.User, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.apiClient.GetProfile(ctx, token)
}

// UpdateProfile replaces the caller's names
func (s *SessionService) UpdateProfile(ctx context.Context, firstName, lastName string) (*pkgapi.User, error) {
	if err := validation.ValidateName(firstName); err != nil {
		return nil, fmt.Errorf("invalid first name: %w", err)
	}
	if err := validation.ValidateName(lastName); err != nil {
		return nil, fmt.Errorf("invalid last name: %w", err)
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.apiClient.UpdateProfile(ctx, token, pkgapi.ProfileRequest{FirstName: firstName, LastName: lastName})
}

// Users lists every account
func (s *SessionService) Users(ctx context.Context) ([]pkgapi.User, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.apiClient.ListUsers(ctx, token)
}

// accessToken returns a usable access token, refreshing the pair once when
// the stored one has expired
func (s *SessionService) accessToken(ctx context.Context) (string, error) {
	data, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	if data.AccessValid(s.now().Add(expirySkew)) {
		return data.AccessToken, nil
	}

	s.logger.DebugContext(ctx, "access token expired, refreshing")

	data, err = s.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return data.AccessToken, nil
}

func (s *SessionService) load(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

func (s *SessionService) saveSession(ctx context.Context, session *api.Session) (*storage.AuthData, error) {
	if session.RefreshToken == "" {
		return nil, fmt.Errorf("server did not set the %s cookie", api.RefreshCookieName)
	}

	data := &storage.AuthData{
		Email:            session.User.Email,
		UserID:           session.User.ID,
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		AccessExpiresAt:  tokenExpiry(session.AccessToken),
		RefreshExpiresAt: tokenExpiry(session.RefreshToken),
	}

	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return data, nil
}

// tokenExpiry reads exp from a JWT without verifying it. The client holds
// no secrets; the value only schedules refreshes. 0 when unreadable.
func tokenExpiry(token string) int64 {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}

// ParseResetToken extracts the reset token from what the user pasted: the
// link from the email, its rpt value, or the raw token
func ParseResetToken(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("reset token cannot be empty")
	}

	if strings.Contains(input, "rpt=") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid reset link: %w", err)
		}
		rpt := u.Query().Get("rpt")
		if rpt == "" {
			return "", fmt.Errorf("reset link has no rpt parameter")
		}
		return decodeRPT(rpt)
	}

	// Raw tokens are base64url; rpt values are standard base64 of them
	if strings.ContainsAny(input, "+/=") {
		return decodeRPT(input)
	}

	return input, nil
}

func decodeRPT(rpt string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rpt)
	if err != nil {
		return "", fmt.Errorf("invalid rpt value: %w", err)
	}
	return string(raw), nil
}
