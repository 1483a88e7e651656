package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/BradenHooton/bulletin/internal/models"
	pkgauth "github.com/BradenHooton/bulletin/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLinks = AccountLinks{
	Verification:     "https://app.example.com/verify?",
	PasswordRecovery: "https://app.example.com/reset?",
	Unlock:           "https://app.example.com/unlock?",
}

func newTestFlows(store *userStore, mailer *MockEmailService) *AccountFlows {
	users := store.repo()
	roles := &MockRoleRepository{}
	accounts, _ := newTestAuthService(users, roles)
	return NewAccountFlows(accounts, NewUserService(users, roles, accounts, discardLogger()), mailer, testLinks, discardLogger())
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	i := strings.Index(link, "?")
	require.GreaterOrEqual(t, i, 0)
	q, err := url.ParseQuery(link[i+1:])
	require.NoError(t, err)
	return q.Get("token")
}

func smtpFailure() error {
	return &EmailTransportError{Provider: "smtp", Diagnostic: "550 mailbox unavailable", Err: errors.New("550")}
}

func TestAccountFlows_Register_SendsVerificationLink(t *testing.T) {
	store := newUserStore()
	mailer := &MockEmailService{}
	flows := newTestFlows(store, mailer)

	user, err := flows.Register(context.Background(), RegisterInput{Email: "new@example.com", Password: "Secure#Pass1", VAT: "1234567890"})
	require.NoError(t, err)
	require.Len(t, mailer.Sent, 1)

	link := mailer.Sent[0]
	assert.True(t, strings.HasPrefix(link, testLinks.Verification))
	assert.Contains(t, link, "email=new%40example.com")

	token := tokenFromLink(t, link)
	assert.Equal(t, pkgauth.HashSecurityToken(token), *store.get(user.Email).VerificationToken)
}

func TestAccountFlows_Register_EmailFailureRemovesUser(t *testing.T) {
	store := newUserStore()
	mailer := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, to, url string) error { return smtpFailure() },
	}
	flows := newTestFlows(store, mailer)

	_, err := flows.Register(context.Background(), RegisterInput{Email: "new@example.com", Password: "Secure#Pass1", VAT: "1234567890"})

	requireAppError(t, err, "EmailServiceException", "550 mailbox unavailable")
	assert.Nil(t, store.get("new@example.com"))
}

func TestAccountFlows_CreateUser_EmailFailureRemovesUser(t *testing.T) {
	store := newUserStore()
	mailer := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, to, url string) error { return errors.New("boom") },
	}
	flows := newTestFlows(store, mailer)

	_, err := flows.CreateUser(context.Background(), CreateUserInput{
		RegisterInput: RegisterInput{Email: "staff@example.com", Password: "Secure#Pass1", VAT: "1234567890"},
		RoleName:      models.RoleEmployee,
	})

	requireAppError(t, err, "EmailServiceException", "Unknown email error")
	assert.Nil(t, store.get("staff@example.com"))
}

func TestAccountFlows_RecoverPassword_EnumerationResistant(t *testing.T) {
	store := newUserStore(NewTestUser("u1", "user@example.com", "Secure#Pass1"))
	mailer := &MockEmailService{}
	flows := newTestFlows(store, mailer)
	ctx := context.Background()

	// Known and unknown emails both succeed; only the known one gets mail.
	require.NoError(t, flows.RecoverPassword(ctx, "ghost@example.com"))
	assert.Empty(t, mailer.Sent)

	require.NoError(t, flows.RecoverPassword(ctx, "user@example.com"))
	require.Len(t, mailer.Sent, 1)
	assert.True(t, strings.HasPrefix(mailer.Sent[0], testLinks.PasswordRecovery))
}

func TestAccountFlows_RecoverPassword_EmailFailureRollsBack(t *testing.T) {
	store := newUserStore(NewTestUser("u1", "user@example.com", "Secure#Pass1"))
	mailer := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, to, url string) error { return smtpFailure() },
	}
	flows := newTestFlows(store, mailer)

	err := flows.RecoverPassword(context.Background(), "user@example.com")

	requireAppError(t, err, "EmailServiceException", "550 mailbox unavailable")
	after := store.get("user@example.com")
	assert.Nil(t, after.PasswordResetToken)
	assert.Nil(t, after.PasswordResetTokenExpires)
}

func TestAccountFlows_RequestUnlock(t *testing.T) {
	t.Run("enabled account gets no mail", func(t *testing.T) {
		mailer := &MockEmailService{}
		flows := newTestFlows(newUserStore(NewTestUser("u1", "user@example.com", "Secure#Pass1")), mailer)
		require.NoError(t, flows.RequestUnlock(context.Background(), "user@example.com"))
		assert.Empty(t, mailer.Sent)
	})

	t.Run("email failure rolls back", func(t *testing.T) {
		store := newUserStore(NewTestUserLocked("u1", "user@example.com", "Secure#Pass1"))
		mailer := &MockEmailService{
			SendUnlockAccountEmailFunc: func(ctx context.Context, to, url string) error { return smtpFailure() },
		}
		flows := newTestFlows(store, mailer)

		err := flows.RequestUnlock(context.Background(), "user@example.com")
		requireAppError(t, err, "EmailServiceException", "")
		assert.Nil(t, store.get("user@example.com").EnableUserToken)
	})

	t.Run("link unlocks", func(t *testing.T) {
		store := newUserStore(NewTestUserLocked("u1", "user@example.com", "Secure#Pass1"))
		mailer := &MockEmailService{}
		flows := newTestFlows(store, mailer)
		ctx := context.Background()

		require.NoError(t, flows.RequestUnlock(ctx, "user@example.com"))
		require.Len(t, mailer.Sent, 1)
		token := tokenFromLink(t, mailer.Sent[0])

		require.NoError(t, flows.auth.UnlockAccount(ctx, "user@example.com", token))
		assert.True(t, store.get("user@example.com").Enabled)
	})
}
