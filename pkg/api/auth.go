package api

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of an account
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthResponse is returned by register and login. The refresh token travels
// only in the jid cookie.
type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// RefreshResponse is returned by POST /refresh_token
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	OK          bool   `json:"ok"`
}

// ResetRequestRequest is the body of POST /api/v1/auth/password/reset-request
type ResetRequestRequest struct {
	Email string `json:"email"`
}

// ResetPerformRequest is the body of POST /api/v1/auth/password/reset
type ResetPerformRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// RevokeResponse is returned by POST /api/v1/auth/revoke
type RevokeResponse struct {
	TokenVersion int `json:"tokenVersion"`
}

// OKResponse acknowledges operations without a payload
type OKResponse struct {
	OK bool `json:"ok"`
}

// MeResponse is returned by GET /api/v1/auth/me. User is null when the
// access token is missing or invalid.
type MeResponse struct {
	User *User `json:"user"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}
