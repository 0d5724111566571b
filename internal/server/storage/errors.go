package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrResetTokenNotFound indicates that reset token is unknown, used or expired
	ErrResetTokenNotFound = errors.New("reset token not found")
)
