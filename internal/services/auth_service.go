package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/models"
	pkgauth "github.com/BradenHooton/bulletin/pkg/auth"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

// AuthEventRecorder counts authentication outcomes.
type AuthEventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// AuthSettings are the tunables of the account lifecycle.
type AuthSettings struct {
	SaltRounds           int
	MaxLoginFailures     int
	VerificationTokenTTL time.Duration
	PasswordResetTTL     time.Duration
	UnlockTokenTTL       time.Duration
}

// RegisterInput is a self-service registration request.
type RegisterInput struct {
	Email    string
	Password string
	VAT      string
	Profile  *models.Profile
}

// IssuedToken is a freshly stored security token. Token is the raw value
// for the emailed link and is never persisted.
type IssuedToken struct {
	User  *models.User
	Token string
}

// AuthService handles authentication and the account lifecycle
type AuthService struct {
	users       UserRepository
	roles       RoleRepository
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	settings    AuthSettings
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	events      AuthEventRecorder
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, roles RoleRepository, tm *auth.TokenManager, timing *auth.TimingDelay,
	settings AuthSettings, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, events AuthEventRecorder) *AuthService {
	if settings.MaxLoginFailures < 1 {
		settings.MaxLoginFailures = 3
	}
	return &AuthService{
		users:       users,
		roles:       roles,
		tm:          tm,
		timing:      timing,
		settings:    settings,
		logger:      logger,
		auditLogger: auditLogger,
		events:      events,
		now:         time.Now,
	}
}

func (s *AuthService) record(event string, err error) {
	if s.events == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.events.RecordAuthEvent(event, outcome)
}

func (s *AuthService) audit(ctx context.Context, event string, user *models.User, email string, err error) {
	e := pkglogger.AuditEvent{EventType: event, Email: email, Success: err == nil}
	if user != nil {
		e.UserID = user.ID
	}
	if appErr, ok := models.AsAppError(err); ok {
		e.FailureReason = appErr.Message
	} else if err != nil {
		e.FailureReason = "internal_error"
	}
	s.auditLogger.LogAuthAttempt(ctx, e)
	s.record(event, err)
}

// Login checks credentials and returns a signed access token. Failed attempts
// are padded by the timing delay.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	start := s.now()
	email = strings.TrimSpace(email)

	user, token, err := s.login(ctx, email, password)
	s.audit(ctx, pkglogger.EventLogin, user, email, err)
	if err != nil {
		if s.timing != nil {
			s.timing.WaitFrom(ctx, start, false)
		}
		return "", err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}

func (s *AuthService) login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, "", models.NewNotAuthorizedError("User", "Bad credentials")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, "", err
	}

	if !user.Verified {
		return user, "", models.NewNotAuthorizedError("User", "User must be verified")
	}
	if !user.Enabled {
		return user, "", models.NewNotAuthorizedError("User", "User is disabled")
	}

	// The threshold is checked before the password, so the attempt after the
	// last allowed failure locks the account whatever password it carries.
	if user.LoginConsecutiveFailures >= s.settings.MaxLoginFailures {
		if _, err := s.users.UpdateByEmail(ctx, email, new(models.UserUpdate).SetEnabled(false).SetFailures(0)); err != nil {
			s.logger.Error("failed to lock account", slog.String("user_id", user.ID), slog.Any("error", err))
			return user, "", err
		}
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventAccountLocked,
			UserID:        user.ID,
			Email:         email,
			FailureReason: "consecutive_failures",
		})
		s.record(pkglogger.EventAccountLocked, nil)
		return user, "", models.NewNotAuthorizedError("User", lockoutMessage(s.settings.MaxLoginFailures))
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		// Plain assignment rather than an increment; concurrent failures may
		// collapse into one.
		upd := new(models.UserUpdate).SetFailures(user.LoginConsecutiveFailures + 1)
		if _, err := s.users.UpdateByEmail(ctx, email, upd); err != nil {
			s.logger.Error("failed to record login failure", slog.String("user_id", user.ID), slog.Any("error", err))
			return user, "", err
		}
		return user, "", models.NewNotAuthorizedError("User", "Bad credentials")
	}

	if user.LoginConsecutiveFailures != 0 {
		if _, err := s.users.UpdateByEmail(ctx, email, new(models.UserUpdate).SetFailures(0)); err != nil {
			s.logger.Error("failed to reset login failures", slog.String("user_id", user.ID), slog.Any("error", err))
			return user, "", err
		}
	}

	token, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return user, "", models.NewServerError("TokenGenerationFailure", "Failed to issue access token", err)
	}
	return user, token, nil
}

func lockoutMessage(n int) string {
	if n == 3 {
		return "User is disabled after three consecutive failures"
	}
	return fmt.Sprintf("User is disabled after %d consecutive failures", n)
}

// Register creates an unverified CLIENT account with a pending verification token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*IssuedToken, error) {
	issued, err := s.createPendingUser(ctx, in, models.RoleClient)
	var user *models.User
	if issued != nil {
		user = issued.User
	}
	s.audit(ctx, pkglogger.EventRegister, user, in.Email, err)
	return issued, err
}

// createPendingUser is shared by self-registration and admin creation.
func (s *AuthService) createPendingUser(ctx context.Context, in RegisterInput, roleName string) (*IssuedToken, error) {
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, &models.ValidationError{
			Message: "Invalid input",
			Fields:  []models.FieldError{{Field: "password", Message: err.Error()}},
		}
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewAlreadyExistsError("User", fmt.Sprintf("User with email %s already exists", in.Email))
	}

	exists, err = s.users.ExistsByVAT(ctx, in.VAT)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewAlreadyExistsError("User", fmt.Sprintf("User with vat %s already exists", in.VAT))
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("Role", fmt.Sprintf("Role with name %q not found", roleName))
		}
		return nil, err
	}

	hash, err := pkgauth.HashPassword(in.Password, s.settings.SaltRounds)
	if err != nil {
		return nil, models.NewServerError("PasswordHashFailure", "Failed to hash password", err)
	}

	tok, err := pkgauth.GenerateVerificationToken()
	if err != nil {
		return nil, models.NewServerError("TokenGenerationFailure", "Failed to generate verification token", err)
	}

	now := s.now().UTC()
	expires := now.Add(s.settings.VerificationTokenTTL)
	created, err := s.users.Create(ctx, &models.User{
		Email:                    in.Email,
		VAT:                      in.VAT,
		PasswordHash:             hash,
		PasswordChangedAt:        now,
		RoleID:                   role.ID,
		Profile:                  in.Profile,
		VerificationToken:        &tok.Hash,
		VerificationTokenExpires: &expires,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)),
		slog.String("role", roleName))
	return &IssuedToken{User: created, Token: tok.Raw}, nil
}

// tokenMiss explains why a conditional token update matched nothing.
// onExpired runs only when the stored token matches but has expired.
func (s *AuthService) tokenMiss(ctx context.Context, email string, kind models.TokenKind, hash string, now time.Time,
	expiredMsg string, onExpired func(ctx context.Context) error) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewNotFoundError("User", fmt.Sprintf("User with email %s not found", email))
		}
		return err
	}

	stored, expires := storedToken(user, kind)
	if stored == nil || subtle.ConstantTimeCompare([]byte(*stored), []byte(hash)) != 1 {
		return models.NewNotFoundError("Token", "Token not found")
	}
	if expires != nil && expires.Before(now) {
		if err := onExpired(ctx); err != nil {
			s.logger.Error("failed to clean up expired token",
				slog.String("user_id", user.ID), slog.String("kind", kind.String()), slog.Any("error", err))
		}
		return models.NewNotAuthorizedError("Token", expiredMsg)
	}
	// Valid token but the conditional update missed: a concurrent request
	// consumed it first.
	return models.NewNotFoundError("Token", "Token not found")
}

func storedToken(u *models.User, kind models.TokenKind) (*string, *time.Time) {
	switch kind {
	case models.VerificationToken:
		return u.VerificationToken, u.VerificationTokenExpires
	case models.PasswordResetToken:
		return u.PasswordResetToken, u.PasswordResetTokenExpires
	case models.EnableUserToken:
		return u.EnableUserToken, u.EnableUserTokenExpires
	}
	return nil, nil
}

// VerifyAccount consumes a verification token, enabling the account. An
// expired token deletes the pending registration.
func (s *AuthService) VerifyAccount(ctx context.Context, email, token string) error {
	hash := pkgauth.HashSecurityToken(token)
	now := s.now()
	upd := new(models.UserUpdate).SetEnabled(true).SetVerified(true).UnsetToken(models.VerificationToken)

	user, err := s.users.ConsumeToken(ctx, email, models.VerificationToken, hash, now, upd)
	if errors.Is(err, models.ErrNotFound) {
		err = s.tokenMiss(ctx, email, models.VerificationToken, hash, now,
			"Verification token expired. Please register again.",
			func(ctx context.Context) error {
				if err := s.users.DeleteByEmail(ctx, email); err != nil {
					return err
				}
				s.auditLogger.LogAccountAction(ctx, pkglogger.EventRegistrationDrop, pkglogger.SanitizedEmail(email), nil)
				return nil
			})
	}

	s.audit(ctx, pkglogger.EventVerifyAccount, user, email, err)
	if err != nil {
		return err
	}
	s.logger.Info("user verified", slog.String("user_id", user.ID))
	return nil
}

// RecoverPassword stores a fresh reset token. It returns nil, nil when no
// account has the email.
func (s *AuthService) RecoverPassword(ctx context.Context, email string) (*IssuedToken, error) {
	tok, err := pkgauth.GenerateResetPasswordToken()
	if err != nil {
		return nil, models.NewServerError("TokenGenerationFailure", "Failed to generate reset token", err)
	}

	upd := new(models.UserUpdate).SetToken(models.PasswordResetToken, tok.Hash, s.now().Add(s.settings.PasswordResetTTL))
	user, err := s.users.UpdateByEmail(ctx, email, upd)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("password recovery for unknown email", slog.String("email", pkglogger.SanitizedEmail(email)))
			s.record(pkglogger.EventRecoverPassword, nil)
			return nil, nil
		}
		s.record(pkglogger.EventRecoverPassword, err)
		return nil, err
	}

	s.audit(ctx, pkglogger.EventRecoverPassword, user, email, nil)
	return &IssuedToken{User: user, Token: tok.Raw}, nil
}

// RollbackRecoverPassword clears the reset token after the email could not be sent.
func (s *AuthService) RollbackRecoverPassword(ctx context.Context, email string) error {
	return s.clearToken(ctx, email, models.PasswordResetToken)
}

func (s *AuthService) clearToken(ctx context.Context, email string, kind models.TokenKind) error {
	_, err := s.users.UpdateByEmail(ctx, email, new(models.UserUpdate).UnsetToken(kind))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	s.logger.Info("token rolled back", slog.String("kind", kind.String()), slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// ResetPasswordAfterRecovery consumes a reset token and sets the new password.
// Every access token issued before the change stops being accepted.
func (s *AuthService) ResetPasswordAfterRecovery(ctx context.Context, email, token, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{
			Message: "Invalid input",
			Fields:  []models.FieldError{{Field: "newPassword", Message: err.Error()}},
		}
	}

	hash, err := pkgauth.HashPassword(newPassword, s.settings.SaltRounds)
	if err != nil {
		return models.NewServerError("PasswordHashFailure", "Failed to hash password", err)
	}

	tokenHash := pkgauth.HashSecurityToken(token)
	now := s.now()
	upd := new(models.UserUpdate).SetPassword(hash, now.UTC()).UnsetToken(models.PasswordResetToken)

	user, err := s.users.ConsumeToken(ctx, email, models.PasswordResetToken, tokenHash, now, upd)
	if errors.Is(err, models.ErrNotFound) {
		err = s.tokenMiss(ctx, email, models.PasswordResetToken, tokenHash, now,
			"Password reset token expired. Please start the recovery process again.",
			func(ctx context.Context) error { return s.clearToken(ctx, email, models.PasswordResetToken) })
	}

	s.audit(ctx, pkglogger.EventResetPassword, user, email, err)
	return err
}

// RequestUnlock stores an unlock token for a disabled account. It returns
// nil, nil when the account is unknown or already enabled.
func (s *AuthService) RequestUnlock(ctx context.Context, email string) (*IssuedToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("unlock requested for unknown email", slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil, nil
		}
		return nil, err
	}
	if user.Enabled {
		s.logger.Info("unlock requested for enabled user", slog.String("user_id", user.ID))
		return nil, nil
	}

	tok, err := pkgauth.GenerateEnableUserToken()
	if err != nil {
		return nil, models.NewServerError("TokenGenerationFailure", "Failed to generate unlock token", err)
	}

	upd := new(models.UserUpdate).SetToken(models.EnableUserToken, tok.Hash, s.now().Add(s.settings.UnlockTokenTTL))
	user, err = s.users.Update(ctx, user.ID, upd)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, pkglogger.EventRequestUnlock, user, email, nil)
	return &IssuedToken{User: user, Token: tok.Raw}, nil
}

// UnlockAccount consumes an unlock token, re-enabling the account with a
// clean failure counter.
func (s *AuthService) UnlockAccount(ctx context.Context, email, token string) error {
	hash := pkgauth.HashSecurityToken(token)
	now := s.now()
	upd := new(models.UserUpdate).SetEnabled(true).SetFailures(0).UnsetToken(models.EnableUserToken)

	user, err := s.users.ConsumeToken(ctx, email, models.EnableUserToken, hash, now, upd)
	if errors.Is(err, models.ErrNotFound) {
		err = s.tokenMiss(ctx, email, models.EnableUserToken, hash, now,
			"Enable user reset token expired. Please start the recovery process again.",
			func(ctx context.Context) error { return s.clearToken(ctx, email, models.EnableUserToken) })
	}

	s.audit(ctx, pkglogger.EventUnlockAccount, user, email, err)
	return err
}

// RollbackEnableUserToken clears the unlock token after the email could not be sent.
func (s *AuthService) RollbackEnableUserToken(ctx context.Context, email string) error {
	return s.clearToken(ctx, email, models.EnableUserToken)
}

// VerifyAccessToken validates the token and re-checks the live account.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*models.TokenClaims, error) {
	claims, err := s.tm.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotAuthorizedError("User", "Bad credentials")
		}
		return nil, err
	}
	if !user.Verified {
		return nil, models.NewNotAuthorizedError("User", "User not verified")
	}
	if !user.Enabled {
		return nil, models.NewNotAuthorizedError("User", "User is disabled")
	}

	// iat is floored to the second, so a token issued in the same second as a
	// password change is rejected too and the client has to log in again.
	if user.PasswordChangedAt.After(claims.IssuedAt.Time) {
		return nil, models.NewNotAuthorizedError("Token", "Password changed after token was issued. Please log in again.")
	}

	return claims, nil
}
