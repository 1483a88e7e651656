package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SecurityTokenBytes is the entropy of verification, reset and unlock tokens.
const SecurityTokenBytes = 64

// SecurityToken is a single-use token. Raw goes into the emailed link,
// Hash is what gets stored.
type SecurityToken struct {
	Raw  string
	Hash string
}

func generateSecurityToken() (SecurityToken, error) {
	buf := make([]byte, SecurityTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return SecurityToken{}, fmt.Errorf("failed to generate security token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return SecurityToken{Raw: raw, Hash: HashSecurityToken(raw)}, nil
}

func GenerateVerificationToken() (SecurityToken, error) {
	return generateSecurityToken()
}

func GenerateResetPasswordToken() (SecurityToken, error) {
	return generateSecurityToken()
}

func GenerateEnableUserToken() (SecurityToken, error) {
	return generateSecurityToken()
}

// HashSecurityToken digests a client-supplied token for lookup.
func HashSecurityToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
