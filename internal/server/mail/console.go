package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ConsoleSender writes emails to a writer instead of delivering them.
// Used for local development.
type ConsoleSender struct {
	w        io.Writer
	logger   *slog.Logger
	resetURL string
	mu       sync.Mutex
}

// NewConsoleSender creates a sender that prints messages to w
func NewConsoleSender(w io.Writer, resetURL string, logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{w: w, resetURL: resetURL, logger: logger}
}

// SendPasswordReset prints the reset email for to
func (s *ConsoleSender) SendPasswordReset(ctx context.Context, to, token string) error {
	link, err := ResetLink(s.resetURL, token)
	if err != nil {
		return err
	}

	plain, _ := resetBodies(link)

	s.mu.Lock()
	_, err = fmt.Fprintf(s.w, "To: %s\nSubject: %s\n\n%s\n", to, ResetSubject, plain)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write email: %w", err)
	}

	s.logger.InfoContext(ctx, "Password reset email written to console")
	return nil
}

var _ Sender = (*ConsoleSender)(nil)
