package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleSnapshot is the role as it was when the access token was issued.
type RoleSnapshot struct {
	Name        string      `json:"name"`
	Authorities Authorities `json:"authorities"`
}

// TokenClaims is the access token payload.
type TokenClaims struct {
	UserID string       `json:"userId"`
	Email  string       `json:"email"`
	Role   RoleSnapshot `json:"role"`
	jwt.RegisteredClaims
}
