package models

import "time"

// User represents an account in the system
type User struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResetToken     *string    `json:"-"` // pending password reset token, nil when none
	ResetExpiresAt *time.Time `json:"-"` // server-side expiry of ResetToken
	ID             string     `json:"id"`         // UUID
	Email          string     `json:"email"`      // unique, case-sensitive
	PasswordHash   string     `json:"-"`          // bcrypt digest, never serialized
	FirstName      string     `json:"first_name"` // profile
	LastName       string     `json:"last_name"`  // profile
	TokenVersion   int        `json:"-"`          // refresh token revocation counter
}

// Profile holds the editable, non-credential part of a user
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Profile returns the profile fields of the user
func (u *User) Profile() Profile {
	return Profile{FirstName: u.FirstName, LastName: u.LastName}
}

// HasPendingReset reports whether a reset token is set and not yet expired at now
func (u *User) HasPendingReset(now time.Time) bool {
	if u.ResetToken == nil || *u.ResetToken == "" {
		return false
	}
	if u.ResetExpiresAt == nil {
		return false
	}
	return now.Before(*u.ResetExpiresAt)
}
