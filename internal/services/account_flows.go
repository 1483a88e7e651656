package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/BradenHooton/bulletin/internal/models"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

// AccountLinks are the frontend pages the emailed tokens point at. Each is a
// prefix ending in "?" or "&"; the token and email are appended as query
// parameters.
type AccountLinks struct {
	Verification     string
	PasswordRecovery string
	Unlock           string
}

func (l AccountLinks) build(base, email, token string) string {
	return base + "token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email)
}

// AccountFlows pairs each token-issuing account operation with its email and
// undoes the stored state when the email cannot be delivered.
type AccountFlows struct {
	auth   *AuthService
	users  *UserService
	mailer EmailService
	links  AccountLinks
	logger *slog.Logger
}

func NewAccountFlows(auth *AuthService, users *UserService, mailer EmailService, links AccountLinks, logger *slog.Logger) *AccountFlows {
	return &AccountFlows{auth: auth, users: users, mailer: mailer, links: links, logger: logger}
}

// emailFailure surfaces the provider's diagnostic to the caller.
func emailFailure(err error) error {
	msg := "Unknown email error"
	var transportErr *EmailTransportError
	if errors.As(err, &transportErr) {
		msg = transportErr.Diagnostic
	}
	return models.NewServerError("EmailServiceException", msg, err)
}

// Register creates a CLIENT account and sends the verification link. If the
// email fails the account is removed again.
func (f *AccountFlows) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	issued, err := f.auth.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := f.sendVerification(ctx, issued); err != nil {
		return nil, err
	}
	return issued.User, nil
}

// CreateUser is the administrator variant of Register with an explicit role.
func (f *AccountFlows) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	issued, err := f.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := f.sendVerification(ctx, issued); err != nil {
		return nil, err
	}
	return issued.User, nil
}

func (f *AccountFlows) sendVerification(ctx context.Context, issued *IssuedToken) error {
	email := issued.User.Email
	link := f.links.build(f.links.Verification, email, issued.Token)
	sendErr := f.mailer.SendVerificationEmail(ctx, email, link)
	if sendErr == nil {
		return nil
	}

	if err := f.users.DeleteByEmail(context.WithoutCancel(ctx), email); err != nil {
		f.logger.Error("failed to remove user after email failure",
			slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
	}
	return emailFailure(sendErr)
}

// RecoverPassword issues a reset token and emails it. Unknown emails succeed
// silently.
func (f *AccountFlows) RecoverPassword(ctx context.Context, email string) error {
	issued, err := f.auth.RecoverPassword(ctx, email)
	if err != nil || issued == nil {
		return err
	}

	link := f.links.build(f.links.PasswordRecovery, email, issued.Token)
	sendErr := f.mailer.SendPasswordResetEmail(ctx, issued.User.Email, link)
	if sendErr == nil {
		return nil
	}

	if err := f.auth.RollbackRecoverPassword(context.WithoutCancel(ctx), email); err != nil {
		f.logger.Error("failed to roll back password reset token",
			slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
	}
	return emailFailure(sendErr)
}

// RequestUnlock issues an unlock token for a disabled account and emails it.
// Unknown or enabled accounts succeed silently.
func (f *AccountFlows) RequestUnlock(ctx context.Context, email string) error {
	issued, err := f.auth.RequestUnlock(ctx, email)
	if err != nil || issued == nil {
		return err
	}

	link := f.links.build(f.links.Unlock, email, issued.Token)
	sendErr := f.mailer.SendUnlockAccountEmail(ctx, issued.User.Email, link)
	if sendErr == nil {
		return nil
	}

	if err := f.auth.RollbackEnableUserToken(context.WithoutCancel(ctx), email); err != nil {
		f.logger.Error("failed to roll back unlock token",
			slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
	}
	return emailFailure(sendErr)
}
