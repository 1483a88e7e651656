package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP_TrustedProxy(t *testing.T) {
	var seen string
	handler := ClientIP(&pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = pkglogger.ClientIP(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.20, 10.1.2.3")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.20", seen)
}

func TestClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	var seen string
	handler := ClientIP(&pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = pkglogger.ClientIP(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.5", seen)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://bulletin.example"}))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://bulletin.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://bulletin.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://bulletin.example"}))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(DefaultCORSConfig([]string{"https://bulletin.example"}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/1", nil)
	req.Header.Set("Origin", "https://bulletin.example")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := ClientIP(nil)(SecureLogger(logger)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?email=jane@example.com", nil)
	req.RemoteAddr = "192.0.2.4:999"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/api/v1/users?[REDACTED]", entry["path"])
	assert.Equal(t, "192.0.2.4", entry["client_ip"])
	assert.Equal(t, "INFO", entry["level"])
	assert.NotContains(t, buf.String(), "jane@example.com")
}

func TestSecureLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health?page=1", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "/health?page=1", entry["path"])
	assert.EqualValues(t, 500, entry["status"])
}
