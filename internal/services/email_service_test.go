package services

import (
	"context"
	"errors"
	"net/textproto"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type transportFunc func(ctx context.Context, msg EmailMessage) error

func (f transportFunc) Send(ctx context.Context, msg EmailMessage) error { return f(ctx, msg) }

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{}, nil
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestMailer_RendersTemplates(t *testing.T) {
	tests := []struct {
		name    string
		send    func(m *Mailer) error
		subject string
		button  string
	}{
		{"verification", func(m *Mailer) error {
			return m.SendVerificationEmail(context.Background(), "a@example.com", "https://x/verify?token=t")
		}, "Verify your account", "Verify Email"},
		{"reset", func(m *Mailer) error {
			return m.SendPasswordResetEmail(context.Background(), "a@example.com", "https://x/reset?token=t")
		}, "Reset Password", "Reset Password"},
		{"unlock", func(m *Mailer) error {
			return m.SendUnlockAccountEmail(context.Background(), "a@example.com", "https://x/unlock?token=t")
		}, "Unlock Account", "Unlock Account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got EmailMessage
			m := NewMailer(transportFunc(func(ctx context.Context, msg EmailMessage) error {
				got = msg
				return nil
			}), "no-reply@example.com", discardLogger())

			require.NoError(t, tt.send(m))
			assert.Equal(t, tt.subject, got.Subject)
			assert.Equal(t, "no-reply@example.com", got.From)
			assert.Equal(t, "a@example.com", got.To)
			assert.Contains(t, got.HTML, tt.button)
			assert.Contains(t, got.HTML, "token=t")
			assert.Contains(t, got.Text, "token=t")
		})
	}
}

func TestMailer_EscapesRecipient(t *testing.T) {
	var got EmailMessage
	m := NewMailer(transportFunc(func(ctx context.Context, msg EmailMessage) error {
		got = msg
		return nil
	}), "no-reply@example.com", discardLogger())

	require.NoError(t, m.SendVerificationEmail(context.Background(), "<b>x</b>@example.com", "https://x/?token=t"))
	assert.NotContains(t, got.HTML, "<b>x</b>")
}

func TestSESTransport(t *testing.T) {
	client := &fakeSES{}
	tr := NewSESTransport(client)

	err := tr.Send(context.Background(), EmailMessage{From: "f@example.com", To: "t@example.com", Subject: "s", HTML: "<p>h</p>", Text: "h"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "s", *client.input.Message.Subject.Data)

	client.err = errors.New("MessageRejected: address blacklisted")
	err = tr.Send(context.Background(), EmailMessage{To: "t@example.com"})
	var tErr *EmailTransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "ses", tErr.Provider)
	assert.Contains(t, tErr.Diagnostic, "MessageRejected")
}

func TestSMTPTransport_Diagnostics(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewSMTPTransport(dialer)

	require.NoError(t, tr.Send(context.Background(), EmailMessage{From: "f@example.com", To: "t@example.com", Subject: "s"}))
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"s"}, dialer.sent[0].GetHeader("Subject"))

	dialer.err = &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
	err := tr.Send(context.Background(), EmailMessage{To: "t@example.com"})
	var tErr *EmailTransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "550 mailbox unavailable", tErr.Diagnostic)

	dialer.err = errors.New("connection refused")
	err = tr.Send(context.Background(), EmailMessage{To: "t@example.com"})
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "Unknown SMTP error", tErr.Diagnostic)
}

func TestSMTPTransport_CancelledContext(t *testing.T) {
	dialer := &fakeDialer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSMTPTransport(dialer).Send(ctx, EmailMessage{To: "t@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dialer.sent)
}
