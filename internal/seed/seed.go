// Package seed installs the built-in roles and an optional first administrator.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/bulletin/internal/config"
	"github.com/BradenHooton/bulletin/internal/models"
	pkgauth "github.com/BradenHooton/bulletin/pkg/auth"
)

type RoleStore interface {
	Upsert(ctx context.Context, role *models.Role) (*models.Role, error)
}

type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// Run upserts the default roles, then creates the bootstrap admin when
// cfg.Admin is fully set and no account with that email exists.
func Run(ctx context.Context, roles RoleStore, users UserStore, cfg *config.Config, logger *slog.Logger) error {
	seeded := make(map[string]*models.Role)
	for _, r := range models.DefaultRoles() {
		role, err := roles.Upsert(ctx, &r)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", r.Name, err)
		}
		seeded[role.Name] = role
	}
	logger.Info("default roles seeded", slog.Int("count", len(seeded)))

	admin := cfg.Admin
	if admin.Email == "" || admin.Password == "" || admin.VAT == "" {
		return nil
	}

	exists, err := users.ExistsByEmail(ctx, admin.Email)
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if exists {
		return nil
	}

	if err := pkgauth.ValidatePassword(admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin password rejected: %w", err)
	}
	hash, err := pkgauth.HashPassword(admin.Password, cfg.Auth.SaltRounds)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	created, err := users.Create(ctx, &models.User{
		Email:             admin.Email,
		VAT:               admin.VAT,
		PasswordHash:      hash,
		Enabled:           true,
		Verified:          true,
		PasswordChangedAt: time.Now().UTC(),
		RoleID:            seeded[models.RoleAdmin].ID,
	})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	logger.Info("bootstrap admin created", slog.String("user_id", created.ID))
	return nil
}
