// Package auth implements account registration, login, the refresh token
// lifecycle, session revocation and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/crypto"
	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/mail"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/validation"
)

const (
	// DefaultResetTTL is how long an emailed reset token stays usable
	DefaultResetTTL = 2 * time.Minute
	// DefaultStoreTimeout bounds every single store call
	DefaultStoreTimeout = 5 * time.Second
)

// Config holds Service tunables
type Config struct {
	ResetTTL     time.Duration
	StoreTimeout time.Duration
}

// Session is the result of a successful register or login
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// RefreshResult is the outcome of a refresh attempt. OK is false for any
// invalid, revoked or orphaned refresh token.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	OK           bool
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the session manager
type Service struct {
	users  storage.UserStorage
	mailer mail.Sender
	codec  *jwt.Codec
	logger *slog.Logger
	resets *resetScheduler
	now    func() time.Time
	cfg    Config
}

// NewService creates a Service. Zero Config fields take their defaults.
func NewService(users storage.UserStorage, codec *jwt.Codec, mailer mail.Sender, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}

	s := &Service{
		users:  users,
		codec:  codec,
		mailer: mailer,
		logger: logger,
		cfg:    cfg,
		resets: newResetScheduler(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Close stops pending reset timers. Tokens stay bounded by their stored expiry.
func (s *Service) Close() {
	s.resets.stop()
}

// RefreshTTL returns the lifetime of issued refresh tokens
func (s *Service) RefreshTTL() time.Duration {
	return s.codec.RefreshTTL()
}

// Register creates an account and opens a session for it
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, validationError(err.Error(), err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, validationError(err.Error(), err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, s.fail(ctx, "hash password", ErrUnavailable, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.users.CreateUser(storeCtx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			s.logger.WarnContext(ctx, "Email already registered")
			return nil, validationError(ErrDuplicateEmail.Error(), ErrDuplicateEmail)
		}
		return nil, s.fail(ctx, "create user", ErrUnavailable, err)
	}

	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))

	return s.issue(ctx, user)
}

// Login checks credentials and opens a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, validationError("email and password are required", nil)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			crypto.VerifyPassword(password, crypto.DummyPasswordHash())
			s.logger.InfoContext(ctx, "Login failed")
			return nil, authError(ErrBadCredentials)
		}
		return nil, s.fail(ctx, "get user by email", ErrUnavailable, err)
	}

	if !crypto.VerifyPassword(password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "Login failed", slog.String("user_id", user.ID))
		return nil, authError(ErrBadCredentials)
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair. Rejections are
// reported through RefreshResult.OK, only dependency failures return an error.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return &RefreshResult{}, nil
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.DebugContext(ctx, "Refresh token rejected", slog.Any("error", err))
		return &RefreshResult{}, nil
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(storeCtx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.InfoContext(ctx, "Refresh for unknown user", slog.String("user_id", claims.UserID))
			return &RefreshResult{}, nil
		}
		return nil, s.fail(ctx, "get user by id", ErrUnavailable, err)
	}

	if user.TokenVersion != claims.TokenVersion {
		s.logger.InfoContext(ctx, "Refresh token revoked",
			slog.String("user_id", user.ID),
			slog.Int("token_version", claims.TokenVersion),
			slog.Int("current_version", user.TokenVersion))
		return &RefreshResult{}, nil
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		OK:           true,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, nil
}

// Me resolves the user of an access token, nil on any failure
func (s *Service) Me(ctx context.Context, accessToken string) *models.User {
	if accessToken == "" {
		return nil
	}

	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(storeCtx, claims.UserID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "Failed to load current user", slog.Any("error", err))
		}
		return nil
	}

	return user
}

// RevokeSessions invalidates every refresh token of userID and returns the new version
func (s *Service) RevokeSessions(ctx context.Context, userID string) (int, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	version, err := s.users.IncrementTokenVersion(storeCtx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return 0, notFoundError(ErrUserNotFound)
		}
		return 0, s.fail(ctx, "increment token version", ErrUnavailable, err)
	}

	s.logger.InfoContext(ctx, "Sessions revoked",
		slog.String("user_id", userID),
		slog.Int("token_version", version))

	return version, nil
}

// RequestPasswordReset emails a reset token to a registered address. An
// unknown address succeeds silently. The email goes out before the token is
// stored, so a failed send leaves no usable token behind.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return validationError(err.Error(), err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	user, err := s.users.GetUserByEmail(storeCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.InfoContext(ctx, "Password reset requested for unknown email")
			return nil
		}
		return s.fail(ctx, "get user by email", ErrUnavailable, err)
	}

	token, err := crypto.GenerateResetToken()
	if err != nil {
		return s.fail(ctx, "generate reset token", ErrUnavailable, err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return s.fail(ctx, "send reset email", ErrEmailDeliveryFailed, err)
	}

	expiresAt := s.now().Add(s.cfg.ResetTTL)

	storeCtx, cancel = s.storeContext(ctx)
	err = s.users.SetResetToken(storeCtx, user.ID, token, expiresAt)
	cancel()
	if err != nil {
		return s.fail(ctx, "set reset token", ErrUnavailable, err)
	}

	s.resets.schedule(user.ID, token, s.cfg.ResetTTL, func() {
		s.expireReset(user.ID, token)
	})

	s.logger.InfoContext(ctx, "Password reset requested",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", expiresAt))

	return nil
}

// PerformPasswordReset sets a new password using a reset token. A token
// works exactly once. The store bumps token_version in the same statement,
// so a changed password never leaves old refresh tokens valid.
func (s *Service) PerformPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return validationError(err.Error(), err)
	}
	if token == "" {
		return notFoundError(ErrInvalidOrExpiredToken)
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return s.fail(ctx, "hash password", ErrUnavailable, err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	userID, version, err := s.users.ConsumeResetToken(storeCtx, token, hash, s.now())
	cancel()
	if err != nil {
		if errors.Is(err, storage.ErrResetTokenNotFound) {
			s.logger.InfoContext(ctx, "Password reset with invalid or expired token")
			return notFoundError(ErrInvalidOrExpiredToken)
		}
		return s.fail(ctx, "consume reset token", ErrUnavailable, err)
	}

	s.resets.cancel(userID)

	s.logger.InfoContext(ctx, "Password reset completed",
		slog.String("user_id", userID),
		slog.Int("token_version", version))

	return nil
}

// GetProfile returns the user with the given ID
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(storeCtx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, notFoundError(ErrUserNotFound)
		}
		return nil, s.fail(ctx, "get user by id", ErrUnavailable, err)
	}

	return user, nil
}

// UpdateProfile replaces the profile of userID and returns the updated user
func (s *Service) UpdateProfile(ctx context.Context, userID string, profile models.Profile) (*models.User, error) {
	if err := validation.ValidateName(profile.FirstName); err != nil {
		return nil, validationError("first name: "+err.Error(), err)
	}
	if err := validation.ValidateName(profile.LastName); err != nil {
		return nil, validationError("last name: "+err.Error(), err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	err := s.users.UpdateProfile(storeCtx, userID, profile)
	cancel()
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, notFoundError(ErrUserNotFound)
		}
		return nil, s.fail(ctx, "update profile", ErrUnavailable, err)
	}

	return s.GetProfile(ctx, userID)
}

// ListUsers returns all registered users
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	users, err := s.users.ListUsers(storeCtx)
	if err != nil {
		return nil, s.fail(ctx, "list users", ErrUnavailable, err)
	}

	return users, nil
}

// SweepExpiredResets clears reset tokens that expired while no timer was
// armed, e.g. across a restart
func (s *Service) SweepExpiredResets(ctx context.Context) (int, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	n, err := s.users.ClearExpiredResetTokens(storeCtx, s.now())
	if err != nil {
		return 0, s.fail(ctx, "clear expired reset tokens", ErrUnavailable, err)
	}

	if n > 0 {
		s.logger.InfoContext(ctx, "Expired reset tokens cleared", slog.Int("count", n))
	}

	return n, nil
}

// expireReset runs when the timer armed for token fires. Two concurrent
// requests may persist B after A yet arm A's timer last; then the row holds
// a token nobody watches, which is re-armed for its remaining lifetime or
// cleared if already past it.
func (s *Service) expireReset(userID, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()

	cleared, err := s.users.ClearResetToken(ctx, userID, token)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear expired reset token",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}

	if cleared {
		s.logger.InfoContext(ctx, "Reset token expired", slog.String("user_id", userID))
		return
	}

	// a newer request owns the timer
	if armed, ok := s.resets.pending(userID); ok && armed != token {
		return
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "Failed to load user for reset expiry",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
		return
	}
	if user.ResetToken == nil {
		return
	}

	stored := *user.ResetToken
	now := s.now()

	if user.HasPendingReset(now) {
		s.resets.schedule(userID, stored, user.ResetExpiresAt.Sub(now), func() {
			s.expireReset(userID, stored)
		})
		return
	}

	if _, err := s.users.ClearResetToken(ctx, userID, stored); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear expired reset token",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}

	s.logger.InfoContext(ctx, "Reset token expired", slog.String("user_id", userID))
}

func (s *Service) issue(ctx context.Context, user *models.User) (*Session, error) {
	access, err := s.codec.SignAccess(user)
	if err != nil {
		return nil, s.fail(ctx, "sign access token", ErrUnavailable, err)
	}

	refresh, err := s.codec.SignRefresh(user)
	if err != nil {
		return nil, s.fail(ctx, "sign refresh token", ErrUnavailable, err)
	}

	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *Service) fail(ctx context.Context, op string, cause, err error) error {
	s.logger.ErrorContext(ctx, "Operation failed",
		slog.String("op", op),
		slog.Any("error", err))
	return dependencyError(cause, fmt.Errorf("%s: %w", op, err))
}
