package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/textproto"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gopkg.in/gomail.v2"

	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

// EmailService defines the interface for sending account emails. url is the
// complete link the recipient should follow.
type EmailService interface {
	SendVerificationEmail(ctx context.Context, to, url string) error
	SendPasswordResetEmail(ctx context.Context, to, url string) error
	SendUnlockAccountEmail(ctx context.Context, to, url string) error
}

// EmailTransportError carries the provider's own diagnostic, e.g. the SMTP
// server reply, so it can be surfaced to operators.
type EmailTransportError struct {
	Provider   string
	Diagnostic string
	Err        error
}

func (e *EmailTransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Diagnostic)
}

func (e *EmailTransportError) Unwrap() error { return e.Err }

// EmailMessage is one rendered email.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailTransport delivers a rendered message.
type EmailTransport interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type emailTemplate struct {
	subject string
	heading string
	intro   string
	button  string
	ignore  string
}

var (
	verificationTemplate = emailTemplate{
		subject: "Verify your account",
		heading: "Verify your account",
		intro:   "Thank you for registering! Please confirm your email address to complete your registration:",
		button:  "Verify Email",
		ignore:  "If you did not request this, you can safely ignore this email.",
	}
	passwordResetTemplate = emailTemplate{
		subject: "Reset Password",
		heading: "Password Reset",
		intro:   "You requested to reset your password. Click the button below to set a new password:",
		button:  "Reset Password",
		ignore:  "If you did not request a password reset, you can ignore this email.",
	}
	unlockTemplate = emailTemplate{
		subject: "Unlock Account",
		heading: "Unlock Account",
		intro:   "You requested to unlock your account. Click the button below to enable your account again:",
		button:  "Unlock Account",
		ignore:  "If you did not request an activation of your account, you can ignore this email.",
	}
)

var htmlLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Heading}}</title>
  <style>
    body { font-family: Arial, sans-serif; background: #f7f7f7; padding: 0; margin: 0; }
    .container { max-width: 480px; background: #fff; margin: 30px auto; border-radius: 8px; overflow: hidden; }
    .header { background: #1976d2; color: #fff; padding: 24px; text-align: center; }
    .content { padding: 32px; text-align: center; }
    .btn { display: inline-block; background: #1976d2; color: #fff; padding: 14px 32px; border-radius: 5px; text-decoration: none; font-weight: bold; margin-top: 18px; }
    .footer { font-size: 12px; color: #888; text-align: center; padding: 16px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h2>{{.Heading}}</h2></div>
    <div class="content">
      <p>Hi, {{.Email}}</p>
      <p>{{.Intro}}</p>
      <a href="{{.URL}}" class="btn">{{.Button}}</a>
      <p style="margin-top:32px;font-size:14px;color:#999;">{{.Ignore}}</p>
    </div>
    <div class="footer">&copy; {{.Year}} Bulletin. All rights reserved.</div>
  </div>
</body>
</html>
`))

// Mailer renders account emails and hands them to a transport.
type Mailer struct {
	transport EmailTransport
	from      string
	logger    *slog.Logger
}

func NewMailer(transport EmailTransport, from string, logger *slog.Logger) *Mailer {
	return &Mailer{transport: transport, from: from, logger: logger}
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, to, url string) error {
	return m.send(ctx, verificationTemplate, to, url)
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, url string) error {
	return m.send(ctx, passwordResetTemplate, to, url)
}

func (m *Mailer) SendUnlockAccountEmail(ctx context.Context, to, url string) error {
	return m.send(ctx, unlockTemplate, to, url)
}

func (m *Mailer) send(ctx context.Context, tpl emailTemplate, to, url string) error {
	msg, err := render(tpl, m.from, to, url)
	if err != nil {
		return err
	}

	if err := m.transport.Send(ctx, msg); err != nil {
		m.logger.Error("failed to send email",
			slog.String("subject", tpl.subject),
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return err
	}

	m.logger.Info("email sent",
		slog.String("subject", tpl.subject),
		slog.String("email", pkglogger.SanitizedEmail(to)))
	return nil
}

func render(tpl emailTemplate, from, to, url string) (EmailMessage, error) {
	var html bytes.Buffer
	err := htmlLayout.Execute(&html, map[string]any{
		"Heading": tpl.heading,
		"Email":   to,
		"Intro":   tpl.intro,
		"URL":     template.URL(url),
		"Button":  tpl.button,
		"Ignore":  tpl.ignore,
		"Year":    time.Now().Year(),
	})
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render email: %w", err)
	}

	text := fmt.Sprintf("%s\n\nHi, %s\n\n%s\n\n%s\n\n%s\n", tpl.heading, to, tpl.intro, url, tpl.ignore)

	return EmailMessage{From: from, To: to, Subject: tpl.subject, HTML: html.String(), Text: text}, nil
}

// SESAPI is the part of the SES client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends emails using AWS SES
type SESTransport struct {
	client SESAPI
}

func NewSESTransport(client SESAPI) *SESTransport {
	return &SESTransport{client: client}
}

// NewSESTransportFromRegion loads the default AWS credentials chain for region.
func NewSESTransportFromRegion(ctx context.Context, region string) (*SESTransport, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESTransport(ses.NewFromConfig(cfg)), nil
}

func (t *SESTransport) Send(ctx context.Context, msg EmailMessage) error {
	input := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML)},
				Text: &types.Content{Data: aws.String(msg.Text)},
			},
		},
	}

	if _, err := t.client.SendEmail(ctx, input); err != nil {
		return &EmailTransportError{Provider: "ses", Diagnostic: err.Error(), Err: err}
	}
	return nil
}

// SMTPSender is satisfied by *gomail.Dialer.
type SMTPSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends emails through an SMTP relay using gomail
type SMTPTransport struct {
	sender SMTPSender
}

func NewSMTPTransport(sender SMTPSender) *SMTPTransport {
	return &SMTPTransport{sender: sender}
}

// NewSMTPDialer builds a dialer; port 465 uses implicit TLS.
func NewSMTPDialer(host string, port int, user, password string) *gomail.Dialer {
	d := gomail.NewDialer(host, port, user, password)
	d.SSL = port == 465
	return d
}

func (t *SMTPTransport) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, "Support")
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := t.sender.DialAndSend(m); err != nil {
		diagnostic := "Unknown SMTP error"
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			diagnostic = fmt.Sprintf("%d %s", tpErr.Code, tpErr.Msg)
		}
		return &EmailTransportError{Provider: "smtp", Diagnostic: diagnostic, Err: err}
	}
	return nil
}
