package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/bulletin/internal/models"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByVAT(ctx context.Context, vat string) (bool, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, upd *models.UserUpdate) (*models.User, error)
	UpdateByEmail(ctx context.Context, email string, upd *models.UserUpdate) (*models.User, error)
	ConsumeToken(ctx context.Context, email string, kind models.TokenKind, tokenHash string, now time.Time, upd *models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id string) error
	DeleteByEmail(ctx context.Context, email string) error
	CountByRole(ctx context.Context, roleID string) (int, error)
}

// CreateUserInput is an administrator's request for a new account with an
// explicit role.
type CreateUserInput struct {
	RegisterInput
	RoleName string
}

// UpdateUserInput replaces the editable fields of an account.
type UpdateUserInput struct {
	Email    string
	VAT      string
	Profile  *models.Profile
	Enabled  bool
	Verified bool
}

// PatchUserInput changes only the fields that are set.
type PatchUserInput struct {
	Profile  *models.Profile
	Enabled  *bool
	Verified *bool
}

// UserService handles user administration
type UserService struct {
	users    UserRepository
	roles    RoleRepository
	accounts *AuthService
	logger   *slog.Logger
}

// NewUserService creates a new UserService. Account creation reuses the
// registration path of accounts.
func NewUserService(users UserRepository, roles RoleRepository, accounts *AuthService, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		roles:    roles,
		accounts: accounts,
		logger:   logger,
	}
}

func userNotFound(id string) error {
	return models.NewNotFoundError("User", fmt.Sprintf("User with id %s not found", id))
}

// userMiss rewrites a bare or generic not-found into one naming the id.
func userMiss(err error, id string) error {
	if errors.Is(err, models.ErrNotFound) {
		return userNotFound(id)
	}
	return err
}

func (s *UserService) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	filter.Normalize()

	page, err := s.users.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("page", filter.Page), slog.Any("error", err))
		return nil, err
	}
	return page, nil
}

func (s *UserService) ListAll(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", id))
			return nil, userNotFound(id)
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}
	return user, nil
}

// Create adds an unverified account with the named role and a pending
// verification token, exactly as registration does.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*IssuedToken, error) {
	issued, err := s.accounts.createPendingUser(ctx, in.RegisterInput, in.RoleName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created by administrator",
		slog.String("user_id", issued.User.ID),
		slog.String("role", in.RoleName))
	return issued, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	upd := new(models.UserUpdate).SetEnabled(in.Enabled).SetVerified(in.Verified)
	upd.Email = &in.Email
	upd.VAT = &in.VAT
	upd.Profile = in.Profile

	user, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return nil, userMiss(err, id)
	}
	s.logger.Info("user updated", slog.String("user_id", id))
	return user, nil
}

func (s *UserService) Patch(ctx context.Context, id string, in PatchUserInput) (*models.User, error) {
	upd := &models.UserUpdate{Profile: in.Profile}
	if in.Enabled != nil {
		upd.SetEnabled(*in.Enabled)
	}
	if in.Verified != nil {
		upd.SetVerified(*in.Verified)
	}
	if upd.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	user, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return nil, userMiss(err, id)
	}
	s.logger.Info("user patched", slog.String("user_id", id))
	return user, nil
}

// ChangeRole assigns the role with the given name.
func (s *UserService) ChangeRole(ctx context.Context, id, roleName string) (*models.User, error) {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("Role", fmt.Sprintf("Role with name %s not found", roleName))
		}
		return nil, err
	}

	user, err := s.users.Update(ctx, id, new(models.UserUpdate).SetRole(role.ID))
	if err != nil {
		return nil, userMiss(err, id)
	}
	s.logger.Info("user role updated", slog.String("user_id", id), slog.String("role", role.Name))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return userMiss(err, id)
	}
	s.logger.Info("user deleted", slog.String("user_id", id))
	return nil
}

func (s *UserService) DeleteByEmail(ctx context.Context, email string) error {
	if err := s.users.DeleteByEmail(ctx, email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewNotFoundError("User", fmt.Sprintf("User with email %s not found", email))
		}
		return err
	}
	s.logger.Info("user deleted", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
