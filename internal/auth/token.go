package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret            []byte
	accessTokenExpiry time.Duration
	now               func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:            []byte(secret),
		accessTokenExpiry: accessExpiry,
		now:               time.Now,
	}
}

// GenerateAccessToken signs a token carrying the user's identity and a
// snapshot of their role. The role must be loaded and valid.
func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	if user.Role == nil {
		return "", fmt.Errorf("user %s has no role loaded", user.ID)
	}
	if err := user.Role.Authorities.Validate(); err != nil {
		return "", fmt.Errorf("role %s has invalid authorities: %w", user.Role.Name, err)
	}

	now := tm.now()
	claims := &models.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role: models.RoleSnapshot{
			Name:        user.Role.Name,
			Authorities: user.Role.Authorities,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims. Failures are
// NotAuthorized app errors; expiry is reported separately from other faults.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithIssuedAt())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.NewNotAuthorizedError("Token", "JWT token has expired")
		}
		return nil, &models.AppError{
			Kind:    models.KindNotAuthorized,
			Code:    "TokenNotAuthorized",
			Message: "Invalid token",
			Err:     err,
		}
	}

	if !token.Valid || claims.UserID == "" || claims.IssuedAt == nil {
		return nil, models.NewNotAuthorizedError("Token", "Invalid token")
	}

	return claims, nil
}
