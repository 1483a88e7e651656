package auth

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecurityToken(t *testing.T) {
	generators := map[string]func() (SecurityToken, error){
		"verification":   GenerateVerificationToken,
		"reset password": GenerateResetPasswordToken,
		"enable user":    GenerateEnableUserToken,
	}

	for name, gen := range generators {
		t.Run(name, func(t *testing.T) {
			tok, err := gen()
			require.NoError(t, err)

			raw, err := hex.DecodeString(tok.Raw)
			require.NoError(t, err)
			assert.Len(t, raw, SecurityTokenBytes)

			assert.NotEqual(t, tok.Raw, tok.Hash)
			assert.Equal(t, HashSecurityToken(tok.Raw), tok.Hash)
		})
	}
}

func TestGenerateSecurityToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := GenerateVerificationToken()
		require.NoError(t, err)
		assert.False(t, seen[tok.Raw], "duplicate token generated")
		seen[tok.Raw] = true
	}
}

func TestHashSecurityToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashSecurityToken("abc"), HashSecurityToken("abc"))
	assert.NotEqual(t, HashSecurityToken("abc"), HashSecurityToken("abd"))
	assert.Len(t, HashSecurityToken("abc"), 64)
}
