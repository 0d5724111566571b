package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophauth/internal/models"
)

// UserStorage defines interface for user data persistence.
// Every mutation is a single-row, single-statement update.
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email (exact match)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// ListUsers returns all users ordered by creation time
	ListUsers(ctx context.Context) ([]*models.User, error)

	// UpdateProfile updates the profile fields of a user
	// Returns ErrUserNotFound if user doesn't exist
	UpdateProfile(ctx context.Context, userID string, profile models.Profile) error

	// SetResetToken stores a reset token with its expiry, replacing any previous one
	// Returns ErrUserNotFound if user doesn't exist
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error

	// ClearResetToken clears the reset token only if it still equals token
	// Returns false if the stored token is different or already cleared
	ClearResetToken(ctx context.Context, userID, token string) (bool, error)

	// ConsumeResetToken replaces the password hash, clears the reset token and
	// bumps token_version in one statement if token is stored and not expired
	// at now. Returns the user ID and the new token version.
	// Returns ErrResetTokenNotFound otherwise
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (string, int, error)

	// ClearExpiredResetTokens removes all reset tokens expired at now
	// Returns number of cleared tokens
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error)

	// IncrementTokenVersion atomically bumps token_version and returns the new value
	// Returns ErrUserNotFound if user doesn't exist
	IncrementTokenVersion(ctx context.Context, userID string) (int, error)
}
