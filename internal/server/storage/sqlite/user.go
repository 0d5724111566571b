package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

const userColumns = `id, email, password_hash, token_version, reset_token, reset_expires_at,
		first_name, last_name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, token_version, first_name, last_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.TokenVersion,
		user.FirstName,
		user.LastName,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	return s.getUser(ctx, query, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	return s.getUser(ctx, query, userID)
}

// ListUsers returns all users ordered by creation time
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []*models.User

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateProfile updates the profile fields of a user
func (s *Storage) UpdateProfile(ctx context.Context, userID string, profile models.Profile) error {
	query := `UPDATE users SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, profile.FirstName, profile.LastName, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return expectRow(result, storage.ErrUserNotFound)
}

// SetResetToken stores a reset token with its expiry
func (s *Storage) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_token = ?, reset_expires_at = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, token, expiresAt.UnixNano(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return expectRow(result, storage.ErrUserNotFound)
}

// ClearResetToken clears the reset token only if it still equals token
func (s *Storage) ClearResetToken(ctx context.Context, userID, token string) (bool, error) {
	query := `
		UPDATE users SET reset_token = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND reset_token = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to clear reset token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// ConsumeResetToken sets a new password hash, clears the reset token and
// revokes every refresh token in a single statement
func (s *Storage) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (string, int, error) {
	query := `
		UPDATE users
		SET password_hash = ?, reset_token = NULL, reset_expires_at = NULL,
			token_version = token_version + 1, updated_at = ?
		WHERE reset_token = ? AND reset_expires_at > ?
		RETURNING id, token_version
	`

	var (
		userID  string
		version int
	)
	err := s.db.QueryRowContext(ctx, query, passwordHash, now.UTC(), token, now.UnixNano()).Scan(&userID, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, storage.ErrResetTokenNotFound
		}
		return "", 0, fmt.Errorf("failed to consume reset token: %w", err)
	}

	return userID, version, nil
}

// ClearExpiredResetTokens removes all reset tokens expired at now
func (s *Storage) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE users SET reset_token = NULL, reset_expires_at = NULL
		WHERE reset_expires_at IS NOT NULL AND reset_expires_at <= ?
	`

	result, err := s.db.ExecContext(ctx, query, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// IncrementTokenVersion atomically bumps token_version
func (s *Storage) IncrementTokenVersion(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE users SET token_version = token_version + 1, updated_at = ?
		WHERE id = ?
		RETURNING token_version
	`

	var version int
	err := s.db.QueryRowContext(ctx, query, time.Now().UTC(), userID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to increment token version: %w", err)
	}

	return version, nil
}

func (s *Storage) getUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var resetToken sql.NullString
	var resetExpiresAt sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.TokenVersion,
		&resetToken,
		&resetExpiresAt,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	if resetExpiresAt.Valid {
		expiresAt := time.Unix(0, resetExpiresAt.Int64).UTC()
		user.ResetExpiresAt = &expiresAt
	}

	return user, nil
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

var _ storage.UserStorage = (*Storage)(nil)
