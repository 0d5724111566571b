package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxEmailLen is the longest address accepted (RFC 5321 path limit)
	MaxEmailLen = 254
	// MaxPasswordLen is the bcrypt input limit in bytes
	MaxPasswordLen = 72
	// MaxNameLen limits first and last name length in characters
	MaxNameLen = 100
)

// ValidateEmail checks that email is a bare addr-spec such as "alice@x.com".
// Display names ("Alice <alice@x.com>") and surrounding spaces are rejected,
// the address is otherwise taken as-is (case-sensitive).
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	if strings.TrimSpace(email) != email {
		return fmt.Errorf("email must not contain leading or trailing spaces")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("email is not a valid address")
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("email is not a valid address")
	}

	return nil
}

// ValidatePassword checks only what hashing needs: non-empty and within
// the bcrypt input limit. There is no strength policy.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}

// ValidateName checks a profile name. Empty is allowed.
func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name must not contain control characters")
		}
	}

	return nil
}
