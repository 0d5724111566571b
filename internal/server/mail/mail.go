// Package mail delivers password reset emails.
package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// ResetSubject is the subject line of password reset emails
const ResetSubject = "Reset password email"

// ErrDeliveryFailed is returned when the provider rejects a message
var ErrDeliveryFailed = errors.New("email delivery failed")

// Sender sends transactional emails
type Sender interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

// ResetLink builds the link to the reset page carrying the token in the rpt parameter
func ResetLink(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid reset url: %w", err)
	}

	q := u.Query()
	q.Set("rpt", base64.StdEncoding.EncodeToString([]byte(token)))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// DecodeResetParam reverses the rpt encoding used in ResetLink
func DecodeResetParam(rpt string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rpt)
	if err != nil {
		return "", fmt.Errorf("invalid rpt parameter: %w", err)
	}
	return string(raw), nil
}

func resetBodies(link string) (plain, html string) {
	plain = fmt.Sprintf("Hi,\n\nPlease open the link below to go to the change password page.\n\n%s\n", link)
	html = fmt.Sprintf(`<h2>Hi</h2>
<p style="padding: 1rem 0;">Please click on the link below to go to the change password page.</p>
<a href="%s" style="color: crimson; font-size: 1rem;">Change Password</a>
`, link)
	return plain, html
}
