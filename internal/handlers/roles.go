package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/bulletin/internal/models"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RoleService defines the interface for role administration
type RoleService interface {
	List(ctx context.Context) ([]*models.Role, error)
	GetByID(ctx context.Context, id string) (*models.Role, error)
	Create(ctx context.Context, name string, authorities models.Authorities) (*models.Role, error)
	Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error)
	Delete(ctx context.Context, id string) error
}

type RoleHandler struct {
	service RoleService
	logger  *slog.Logger
}

func NewRoleHandler(service RoleService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{service: service, logger: logger}
}

// @Router /roles [get]
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, roles)
}

// @Router /roles/{id} [get]
func (h *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, role)
}

// @Router /roles [post]
func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeAndValidate(w, r, "Role", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	role, err := h.service.Create(r.Context(), strings.TrimSpace(req.Name), toAuthorities(req.Authorities))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, role)
}

// UpdateRole replaces both name and authorities
// @Router /roles/{id} [put]
func (h *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeAndValidate(w, r, "Role", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	authorities := toAuthorities(req.Authorities)
	h.update(w, r, models.RoleUpdate{Name: &name, Authorities: &authorities})
}

// PatchRole changes only the given fields
// @Router /roles/{id} [patch]
func (h *RoleHandler) PatchRole(w http.ResponseWriter, r *http.Request) {
	var req PatchRoleRequest
	if err := decodeAndValidate(w, r, "Role", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	var upd models.RoleUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}
	if req.Authorities != nil {
		authorities := toAuthorities(*req.Authorities)
		upd.Authorities = &authorities
	}
	h.update(w, r, upd)
}

func (h *RoleHandler) update(w http.ResponseWriter, r *http.Request, upd models.RoleUpdate) {
	role, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, role)
}

// DeleteRole fails while the role is assigned
// @Router /roles/{id} [delete]
func (h *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusNoContent, nil)
}
