package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/bulletin/internal/config"
	"github.com/BradenHooton/bulletin/internal/models"
	pkgauth "github.com/BradenHooton/bulletin/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRoles map[string]*models.Role

func (m memRoles) Upsert(ctx context.Context, role *models.Role) (*models.Role, error) {
	if existing, ok := m[role.Name]; ok {
		existing.Authorities = role.Authorities
		return existing, nil
	}
	r := *role
	r.ID = "role-" + role.Name
	m[role.Name] = &r
	return &r, nil
}

type memUsers struct {
	created []*models.User
	exists  bool
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) { return m.exists, nil }

func (m *memUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	u.ID = "admin-1"
	m.created = append(m.created, &u)
	return &u, nil
}

func testConfig() *config.Config {
	return &config.Config{Auth: config.AuthConfig{SaltRounds: 4}}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_SeedsRolesIdempotently(t *testing.T) {
	roles := memRoles{}
	users := &memUsers{}

	require.NoError(t, Run(context.Background(), roles, users, testConfig(), discard()))
	require.NoError(t, Run(context.Background(), roles, users, testConfig(), discard()))

	assert.Len(t, roles, 3)
	assert.True(t, roles[models.RoleAdmin].Authorities.Allows(models.ResourceRole, models.ActionDelete))
	assert.False(t, roles[models.RoleClient].Authorities.Allows(models.ResourceUser, models.ActionRead))
	assert.Empty(t, users.created, "no admin without configuration")
}

func TestRun_BootstrapAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Email: "root@example.com", Password: "Secure#Pass1", VAT: "1234567890"}
	users := &memUsers{}

	require.NoError(t, Run(context.Background(), memRoles{}, users, cfg, discard()))

	require.Len(t, users.created, 1)
	admin := users.created[0]
	assert.Equal(t, "role-"+models.RoleAdmin, admin.RoleID)
	assert.True(t, admin.Enabled)
	assert.True(t, admin.Verified)
	assert.NoError(t, pkgauth.ComparePassword(admin.PasswordHash, "Secure#Pass1"))
}

func TestRun_BootstrapAdminSkippedWhenPresent(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Email: "root@example.com", Password: "Secure#Pass1", VAT: "1234567890"}
	users := &memUsers{exists: true}

	require.NoError(t, Run(context.Background(), memRoles{}, users, cfg, discard()))
	assert.Empty(t, users.created)
}

func TestRun_BootstrapAdminWeakPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Email: "root@example.com", Password: "short", VAT: "1234567890"}

	assert.Error(t, Run(context.Background(), memRoles{}, &memUsers{}, cfg, discard()))
}
