package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/bulletin/internal/models"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// TokenVerifier checks an access token against the live account state.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*models.TokenClaims, error)
}

// Authenticate validates the bearer token and injects its claims into context
func Authenticate(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteAppError(w, logger, models.NewNotAuthorizedError("User", "Authorization header required"))
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				pkghttp.WriteAppError(w, logger, models.NewNotAuthorizedError("User", "Invalid Bearer token provided"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), strings.TrimSpace(tokenString))
			if err != nil {
				pkghttp.WriteAppError(w, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthority allows the request only if the caller's role grants action
// on resource. Must run after Authenticate.
func RequireAuthority(resource models.Resource, action models.Action, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil || claims.Role.Name == "" || claims.Role.Authorities == nil {
				pkghttp.WriteAppError(w, logger, models.NewForbiddenError("User", "User role information missing"))
				return
			}

			if !claims.Role.Authorities.Allows(resource, action) {
				pkghttp.WriteAppError(w, logger, models.NewForbiddenError("User",
					fmt.Sprintf("You do not have permission to %s on resource %s.", action, resource)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	return ClaimsFromContext(r.Context())
}

// ClaimsFromContext is GetUserFromContext for code that only has a context.
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, ok := ctx.Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithClaims returns a context carrying claims, as Authenticate would.
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
