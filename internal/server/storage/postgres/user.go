package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, token_version, reset_token, reset_expires_at, first_name, last_name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, token_version, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.TokenVersion,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

// ListUsers returns all users ordered by creation time
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return users, nil
}

// UpdateProfile updates the profile fields of a user
func (s *Storage) UpdateProfile(ctx context.Context, userID string, profile models.Profile) error {
	query := `UPDATE users SET first_name = $1, last_name = $2, updated_at = now() WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, profile.FirstName, profile.LastName, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectRow(result, storage.ErrUserNotFound)
}

// SetResetToken stores a reset token with its expiry
func (s *Storage) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_token = $1, reset_expires_at = $2, updated_at = now() WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, token, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectRow(result, storage.ErrUserNotFound)
}

// ClearResetToken clears the reset token only if it still equals token
func (s *Storage) ClearResetToken(ctx context.Context, userID, token string) (bool, error) {
	query := `UPDATE users SET reset_token = NULL, reset_expires_at = NULL, updated_at = now() WHERE id = $1 AND reset_token = $2`

	result, err := s.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rows > 0, nil
}

// ConsumeResetToken sets a new password hash, clears the reset token and
// revokes every refresh token in a single statement
func (s *Storage) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (string, int, error) {
	query := `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_expires_at = NULL,
			token_version = token_version + 1, updated_at = now()
		WHERE reset_token = $2 AND reset_expires_at > $3
		RETURNING id, token_version
	`

	var (
		userID  string
		version int
	)
	err := s.db.QueryRowContext(ctx, query, passwordHash, token, now).Scan(&userID, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, storage.ErrResetTokenNotFound
		}
		return "", 0, fmt.Errorf("db error: %w", err)
	}

	return userID, version, nil
}

// ClearExpiredResetTokens removes all reset tokens expired at now
func (s *Storage) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error) {
	query := `UPDATE users SET reset_token = NULL, reset_expires_at = NULL WHERE reset_expires_at <= $1`

	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return int(rows), nil
}

// IncrementTokenVersion atomically bumps token_version
func (s *Storage) IncrementTokenVersion(ctx context.Context, userID string) (int, error) {
	query := `UPDATE users SET token_version = token_version + 1, updated_at = now() WHERE id = $1 RETURNING token_version`

	var version int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrUserNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}

func (s *Storage) getUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var resetToken sql.NullString
	var resetExpiresAt sql.NullTime

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
		user.ResetExpiresAt = &resetExpiresAt.Time
	}

	return user, nil
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

var _ storage.UserStorage = (*Storage)(nil)
