package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	resp *rest.Response
	err  error
	sent []*sgmail.SGMailV3
}

func (f *fakeClient) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	return f.resp, f.err
}

func TestResetLink(t *testing.T) {
	link, err := ResetLink("http://localhost:3000/reset_password", "a-b_c")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/reset_password", u.Path)

	token, err := DecodeResetParam(u.Query().Get("rpt"))
	require.NoError(t, err)
	assert.Equal(t, "a-b_c", token)
}

func TestResetLink_KeepsExistingQuery(t *testing.T) {
	link, err := ResetLink("https://app.example.com/reset?lang=en", "tok")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "en", u.Query().Get("lang"))
	assert.NotEmpty(t, u.Query().Get("rpt"))
}

func TestResetLink_InvalidURL(t *testing.T) {
	_, err := ResetLink("://bad", "tok")
	assert.Error(t, err)
}

func TestDecodeResetParam_Invalid(t *testing.T) {
	_, err := DecodeResetParam("%%%")
	assert.Error(t, err)
}

func TestSendGridSender_SendPasswordReset(t *testing.T) {
	cfg := SendGridConfig{
		From:     "noreply@example.com",
		FromName: "gophauth",
		ResetURL: "http://localhost:3000/reset_password",
	}

	tests := []struct {
		resp    *rest.Response
		err     error
		name    string
		wantErr bool
	}{
		{name: "accepted", resp: &rest.Response{StatusCode: 202}},
		{name: "rejected", resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}, wantErr: true},
		{name: "transport error", err: errors.New("dial tcp: timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{resp: tt.resp, err: tt.err}
			sender := &SendGridSender{client: client, cfg: cfg, logger: discardLogger()}

			err := sender.SendPasswordReset(context.Background(), "alice@x.com", "tok")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, client.sent, 1)
			msg := client.sent[0]
			assert.Equal(t, ResetSubject, msg.Subject)
			assert.Equal(t, "noreply@example.com", msg.From.Address)
			require.Len(t, msg.Personalizations, 1)
			require.Len(t, msg.Personalizations[0].To, 1)
			assert.Equal(t, "alice@x.com", msg.Personalizations[0].To[0].Address)

			link, _ := ResetLink(cfg.ResetURL, "tok")
			for _, c := range msg.Content {
				assert.Contains(t, c.Value, link)
			}
		})
	}
}

func TestSendGridSender_RejectedIsDeliveryFailure(t *testing.T) {
	client := &fakeClient{resp: &rest.Response{StatusCode: 500}}
	sender := &SendGridSender{client: client, cfg: SendGridConfig{ResetURL: "http://x/reset"}, logger: discardLogger()}

	err := sender.SendPasswordReset(context.Background(), "bob@x.com", "tok")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestConsoleSender_SendPasswordReset(t *testing.T) {
	var buf bytes.Buffer
	sender := NewConsoleSender(&buf, "http://localhost:3000/reset_password", discardLogger())

	require.NoError(t, sender.SendPasswordReset(context.Background(), "alice@x.com", "tok"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "To: alice@x.com\n"))
	assert.Contains(t, out, "Subject: "+ResetSubject)

	link, _ := ResetLink("http://localhost:3000/reset_password", "tok")
	assert.Contains(t, out, link)
}
