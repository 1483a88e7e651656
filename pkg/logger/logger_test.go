package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"a@b.io", "a@*.io"},
		{"not-an-email", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizedEmail(tt.input), tt.input)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc&email=x"))
	assert.True(t, SanitizeQueryString("Password=1"))
	assert.False(t, SanitizeQueryString("page=2&pageSize=10"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestAuditLogger_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(New(&buf, "info"))

	audit.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventLogin,
		Email:         "alice@example.com",
		Success:       false,
		FailureReason: "bad credentials",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "a****@*******.com", line["email"])
	assert.Equal(t, "login", line["event_type"])
	assert.NotContains(t, buf.String(), "alice@example.com")
}

func TestSanitizeQueryString_ChecksKeysNotValues(t *testing.T) {
	// a value that merely mentions a sensitive word is fine
	assert.False(t, SanitizeQueryString("title=reset+your+password"))
	assert.True(t, SanitizeQueryString("resetToken=abc"))
	assert.True(t, SanitizeQueryString("email=%zz"))
	assert.False(t, SanitizeQueryString(""))
}
