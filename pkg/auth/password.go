package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt ignores bytes past 72
	specialChars      = "!@#$%^&*"
)

// PasswordValidationError lists every rule a password failed.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password: " + strings.Join(e.Errors, "; ")
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password1!":   true,
	"password123!": true,
	"passw0rd!":    true,
	"welcome1!":    true,
	"qwerty123!":   true,
	"letmein1!":    true,
	"admin123!":    true,
	"changeme1!":   true,
}

// HashPassword salts and hashes a password with the given bcrypt cost.
// A cost outside bcrypt's range falls back to DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword is constant-time with respect to the candidate.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword requires at least 8 characters with a lowercase letter,
// an uppercase letter, a digit and one of !@#$%^&*.
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	if len(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := strings.ContainsAny(password, specialChars)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower {
		errors = append(errors, "must contain lowercase")
	}
	if !hasUpper {
		errors = append(errors, "must contain uppercase")
	}
	if !hasDigit {
		errors = append(errors, "must contain number")
	}
	if !hasSpecial {
		errors = append(errors, "must contain special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}
