package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/bulletin/internal/models"
)

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error)
	Delete(ctx context.Context, id string) error
}

// RoleUsage counts the accounts holding a role.
type RoleUsage interface {
	CountByRole(ctx context.Context, roleID string) (int, error)
}

// RoleService handles role administration
type RoleService struct {
	roles  RoleRepository
	usage  RoleUsage
	logger *slog.Logger
}

func NewRoleService(roles RoleRepository, usage RoleUsage, logger *slog.Logger) *RoleService {
	return &RoleService{roles: roles, usage: usage, logger: logger}
}

func roleNotFound(id string) error {
	return models.NewNotFoundError("Role", fmt.Sprintf("Role with id %s not found", id))
}

func invalidAuthorities(err error) error {
	return &models.ValidationError{
		Message: "Invalid input",
		Fields:  []models.FieldError{{Field: "authorities", Message: err.Error()}},
	}
}

func (s *RoleService) List(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		s.logger.Error("failed to list roles", slog.Any("error", err))
		return nil, err
	}
	return roles, nil
}

func (s *RoleService) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, roleNotFound(id)
		}
		return nil, err
	}
	return role, nil
}

func (s *RoleService) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("Role", fmt.Sprintf("Role with name %s not found", name))
		}
		return nil, err
	}
	return role, nil
}

func (s *RoleService) Create(ctx context.Context, name string, authorities models.Authorities) (*models.Role, error) {
	if err := authorities.Validate(); err != nil {
		return nil, invalidAuthorities(err)
	}

	exists, err := s.roles.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewAlreadyExistsError("Role", fmt.Sprintf("Role with name %s already exists", name))
	}

	role, err := s.roles.Create(ctx, &models.Role{Name: name, Authorities: authorities})
	if err != nil {
		s.logger.Error("failed to create role", slog.String("name", name), slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("role created", slog.String("role_id", role.ID), slog.String("name", name))
	return role, nil
}

// Update writes the non-nil fields of upd. A full update sets both.
func (s *RoleService) Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error) {
	if upd.Authorities != nil {
		if err := upd.Authorities.Validate(); err != nil {
			return nil, invalidAuthorities(err)
		}
	}
	if upd.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	role, err := s.roles.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, roleNotFound(id)
		}
		return nil, err
	}

	s.logger.Info("role updated", slog.String("role_id", id))
	return role, nil
}

// Delete refuses while any account still holds the role.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	n, err := s.usage.CountByRole(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return models.NewInvalidArgumentError("Role", "Cannot delete role. It is assigned to one or more users.")
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return roleNotFound(id)
		}
		return err
	}

	s.logger.Info("role deleted", slog.String("role_id", id))
	return nil
}
