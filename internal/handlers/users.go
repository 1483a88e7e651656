package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/services"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for user administration
type UserService interface {
	List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, in services.UpdateUserInput) (*models.User, error)
	Patch(ctx context.Context, id string, in services.PatchUserInput) (*models.User, error)
	ChangeRole(ctx context.Context, id, roleName string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserCreator creates accounts and sends their verification email
type UserCreator interface {
	CreateUser(ctx context.Context, in services.CreateUserInput) (*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	creator UserCreator
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, creator UserCreator, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: service, creator: creator, logger: logger}
}

// ListUsers returns one page of users.
//
// Query: page (1-based), pageSize, email and vat (prefix match), enabled,
// verified, role (repeatable).
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseUserFilter(r)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WritePaginated(w, page.Users, len(page.Users), page.TotalItems, page.Page, page.PageSize)
}

func parseUserFilter(r *http.Request) (models.UserFilter, error) {
	q := r.URL.Query()
	filter := models.UserFilter{
		Email:     strings.TrimSpace(q.Get("email")),
		VAT:       strings.TrimSpace(q.Get("vat")),
		RoleNames: q["role"],
	}

	var fields []models.FieldError
	parseInt := func(name string, dst *int) {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				fields = append(fields, models.FieldError{Field: name, Message: "must be a non-negative integer"})
				return
			}
			*dst = n
		}
	}
	parseBool := func(name string, dst **bool) {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fields = append(fields, models.FieldError{Field: name, Message: "must be true or false"})
				return
			}
			*dst = &b
		}
	}

	parseInt("page", &filter.Page)
	parseInt("pageSize", &filter.PageSize)
	parseBool("enabled", &filter.Enabled)
	parseBool("verified", &filter.Verified)

	if len(fields) > 0 {
		return filter, &models.ValidationError{Message: "User filter validation failed", Fields: fields}
	}
	return filter, nil
}

// CreateUser creates an account with an explicit role
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	user, err := h.creator.CreateUser(r.Context(), services.CreateUserInput{
		RegisterInput: services.RegisterInput{
			Email:    normalizeEmail(req.Email),
			Password: req.Password,
			VAT:      req.VAT,
			Profile:  req.Profile.toModel(),
		},
		RoleName: strings.TrimSpace(req.Role),
	})
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, user)
}

// GetUser retrieves a user by ID
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, user)
}

// UpdateUser replaces the editable fields of a user
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	user, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), services.UpdateUserInput{
		Email:    normalizeEmail(req.Email),
		VAT:      req.VAT,
		Profile:  req.Profile.toModel(),
		Enabled:  req.Enabled,
		Verified: req.Verified,
	})
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, user)
}

// PatchUser changes only the given fields
// @Router /users/{id} [patch]
func (h *UserHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	var req PatchUserRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	user, err := h.service.Patch(r.Context(), chi.URLParam(r, "id"), services.PatchUserInput{
		Profile:  req.Profile.toModel(),
		Enabled:  req.Enabled,
		Verified: req.Verified,
	})
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, user)
}

// ChangeRole assigns a role by name
// @Router /users/{id}/change-role [patch]
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	user, err := h.service.ChangeRole(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Role))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, user)
}

// DeleteUser deletes a user
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusNoContent, nil)
}
