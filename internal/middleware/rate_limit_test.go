package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP_BlocksAfterLimit(t *testing.T) {
	handler := ClientIP(nil)(RateLimitByIP(RateLimitConfig{Requests: 2, Window: time.Minute})(okHandler()))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7:4000").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.7:4001").Code)

	w := send("203.0.113.7:4002")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RateLimitExceeded", body.Code)

	// Other clients keep their own budget
	assert.Equal(t, http.StatusOK, send("198.51.100.2:4000").Code)
}

func TestRateLimitByIP_SpoofedForwardedForShareBudget(t *testing.T) {
	handler := ClientIP(nil)(RateLimitByIP(RateLimitConfig{Requests: 1, Window: time.Minute})(okHandler()))

	for i, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		req.Header.Set("X-Forwarded-For", spoofed)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
}

func TestDefaultAuthRateLimit(t *testing.T) {
	cfg := DefaultAuthRateLimit()
	assert.Equal(t, 5, cfg.Requests)
	assert.Equal(t, time.Minute, cfg.Window)
}
