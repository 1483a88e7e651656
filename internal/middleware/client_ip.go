package middleware

import (
	"net/http"

	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

// ClientIP resolves the caller address once per request and stores it on the
// context. Forwarding headers are only honored from trusted proxies.
func ClientIP(config *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, config)
			next.ServeHTTP(w, r.WithContext(pkglogger.WithClientIP(r.Context(), ip)))
		})
	}
}
