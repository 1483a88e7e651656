package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/handlers"
	"github.com/BradenHooton/bulletin/internal/middleware"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the endpoint handlers mounted under the API prefix
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Roles         *handlers.RoleHandler
	Announcements *handlers.AnnouncementHandler
}

// RegisterRoutes registers all application routes on router, which is
// expected to be mounted at /api/{version}.
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	verifier auth.TokenVerifier,
	authLimit middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	// Public account lifecycle, limited per client IP
	router.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authLimit))
		r.Post("/login", h.Auth.Login)
		r.Post("/register", h.Auth.Register)
		r.Post("/verify-account", h.Auth.VerifyAccount)
		r.Post("/password-recovery/{email}", h.Auth.RecoverPassword)
		r.Post("/reset-password", h.Auth.ResetPassword)
		r.Post("/request-unlock/{email}", h.Auth.RequestUnlock)
		r.Post("/unlock", h.Auth.Unlock)
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(verifier, logger))

		guard := func(resource models.Resource, action models.Action) func(http.Handler) http.Handler {
			return auth.RequireAuthority(resource, action, logger)
		}

		r.Route("/users", func(r chi.Router) {
			r.With(guard(models.ResourceUser, models.ActionRead)).Get("/", h.Users.ListUsers)
			r.With(guard(models.ResourceUser, models.ActionCreate)).Post("/", h.Users.CreateUser)
			r.With(guard(models.ResourceUser, models.ActionRead)).Get("/{id}", h.Users.GetUser)
			r.With(guard(models.ResourceUser, models.ActionUpdate)).Put("/{id}", h.Users.UpdateUser)
			r.With(guard(models.ResourceUser, models.ActionUpdate)).Patch("/{id}", h.Users.PatchUser)
			r.With(guard(models.ResourceUser, models.ActionUpdate)).Patch("/{id}/change-role", h.Users.ChangeRole)
			r.With(guard(models.ResourceUser, models.ActionDelete)).Delete("/{id}", h.Users.DeleteUser)
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(guard(models.ResourceRole, models.ActionRead)).Get("/", h.Roles.ListRoles)
			r.With(guard(models.ResourceRole, models.ActionCreate)).Post("/", h.Roles.CreateRole)
			r.With(guard(models.ResourceRole, models.ActionRead)).Get("/{id}", h.Roles.GetRole)
			r.With(guard(models.ResourceRole, models.ActionUpdate)).Put("/{id}", h.Roles.UpdateRole)
			r.With(guard(models.ResourceRole, models.ActionUpdate)).Patch("/{id}", h.Roles.PatchRole)
			r.With(guard(models.ResourceRole, models.ActionDelete)).Delete("/{id}", h.Roles.DeleteRole)
		})

		r.Route("/announcements", func(r chi.Router) {
			r.With(guard(models.ResourceAnnouncement, models.ActionRead)).Get("/", h.Announcements.ListAnnouncements)
			r.With(guard(models.ResourceAnnouncement, models.ActionCreate)).Post("/", h.Announcements.CreateAnnouncement)
			r.With(guard(models.ResourceAnnouncement, models.ActionRead)).Get("/{id}", h.Announcements.GetAnnouncement)
			r.With(guard(models.ResourceAnnouncement, models.ActionUpdate)).Put("/{id}", h.Announcements.UpdateAnnouncement)
			r.With(guard(models.ResourceAnnouncement, models.ActionDelete)).Delete("/{id}", h.Announcements.DeleteAnnouncement)
		})
	})
}
