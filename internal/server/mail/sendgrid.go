package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds SendGrid sender settings
type SendGridConfig struct {
	APIKey   string
	From     string
	FromName string
	ResetURL string
}

// SendGridSender sends emails through the SendGrid v3 API
type SendGridSender struct {
	client sendClient
	logger *slog.Logger
	cfg    SendGridConfig
}

// NewSendGridSender creates a sender backed by the SendGrid API
func NewSendGridSender(cfg SendGridConfig, logger *slog.Logger) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

// SendPasswordReset emails a reset link for token to the given address
func (s *SendGridSender) SendPasswordReset(ctx context.Context, to, token string) error {
	link, err := ResetLink(s.cfg.ResetURL, token)
	if err != nil {
		return err
	}

	plain, html := resetBodies(link)
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.cfg.FromName, s.cfg.From),
		ResetSubject,
		sgmail.NewEmail("", to),
		plain,
		html,
	)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.WarnContext(ctx, "SendGrid rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("body", resp.Body))
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	s.logger.DebugContext(ctx, "Password reset email sent", slog.Int("status", resp.StatusCode))
	return nil
}

var _ Sender = (*SendGridSender)(nil)
