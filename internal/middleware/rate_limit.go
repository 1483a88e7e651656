package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit returns the limit for the public auth endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// RateLimitByIP limits requests per client IP. The key is the address
// resolved by ClientIP, so it must run after that middleware.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(clientIPKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
		}),
	)
}

func clientIPKey(r *http.Request) (string, error) {
	if ip := pkglogger.ClientIP(r.Context()); ip != "" {
		return ip, nil
	}
	return httprate.KeyByRealIP(r)
}
