package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used for every stored password
const PasswordCost = 12

// ResetTokenSize is the number of random bytes in a password reset token
const ResetTokenSize = 32

// DummyPasswordHash returns a bcrypt digest at PasswordCost of a fixed string.
// Login compares against it when the email is unknown so both failure
// paths cost one bcrypt comparison. Computed once on first use.
var DummyPasswordHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("gophauth-dummy-password"), PasswordCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
})

// HashPassword returns a salted bcrypt digest of the password
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt digest.
// A malformed digest yields false.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateResetToken returns a high-entropy URL-safe token
func GenerateResetToken() (string, error) {
	tokenBytes := make([]byte, ResetTokenSize)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}
