package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/bulletin/internal/handlers"
	"github.com/BradenHooton/bulletin/internal/middleware"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// stubVerifier maps bearer tokens straight to a default role
type stubVerifier struct{}

func (stubVerifier) VerifyAccessToken(ctx context.Context, token string) (*models.TokenClaims, error) {
	for _, role := range models.DefaultRoles() {
		if role.Name == token {
			return &models.TokenClaims{
				UserID: "user-" + token,
				Role:   models.RoleSnapshot{Name: role.Name, Authorities: role.Authorities},
			}, nil
		}
	}
	return nil, models.NewNotAuthorizedError("Token", "Invalid token")
}

func newTestRouter(authLimit int) http.Handler {
	logger := handlers.DiscardLogger()
	h := Handlers{
		Auth:          handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockAccountFlows{}, logger),
		Users:         handlers.NewUserHandler(&handlers.MockUserService{}, &handlers.MockAccountFlows{}, logger),
		Roles:         handlers.NewRoleHandler(&handlers.MockRoleService{}, logger),
		Announcements: handlers.NewAnnouncementHandler(&handlers.MockAnnouncementService{}, nil, logger),
	}

	root := chi.NewRouter()
	root.Use(middleware.ClientIP(nil))
	root.Route("/api/v1", func(r chi.Router) {
		RegisterRoutes(r, h, stubVerifier{}, middleware.RateLimitConfig{Requests: authLimit, Window: time.Minute}, logger)
	})
	return root
}

func TestRoutes_AuthorityGuards(t *testing.T) {
	router := newTestRouter(100)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/announcements", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/announcements", "nobody", http.StatusUnauthorized},
		{"client reads announcements", http.MethodGet, "/api/v1/announcements", models.RoleClient, http.StatusOK},
		{"client cannot delete announcements", http.MethodDelete, "/api/v1/announcements/a1", models.RoleClient, http.StatusForbidden},
		{"employee deletes announcements", http.MethodDelete, "/api/v1/announcements/a1", models.RoleEmployee, http.StatusNoContent},
		{"employee cannot list users", http.MethodGet, "/api/v1/users", models.RoleEmployee, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/api/v1/users", models.RoleAdmin, http.StatusOK},
		{"admin lists roles", http.MethodGet, "/api/v1/roles", models.RoleAdmin, http.StatusOK},
		{"client cannot change roles", http.MethodPatch, "/api/v1/users/u1/change-role", models.RoleClient, http.StatusForbidden},
		{"admin deletes role", http.MethodDelete, "/api/v1/roles/r1", models.RoleAdmin, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRoutes_AuthEndpointsArePublicAndLimited(t *testing.T) {
	router := newTestRouter(2)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-recovery/jane@example.com", nil)
		req.RemoteAddr = "203.0.113.1:1000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
