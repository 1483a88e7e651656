package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query keys whose presence redacts the whole query string.
var sensitiveParams = []string{"password", "token", "secret", "email", "vat", "auth"}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	// Keep the TLD only
	if dot := strings.LastIndex(domain, "."); dot > 0 {
		labels := strings.Split(domain[:dot], ".")
		for i, l := range labels {
			labels[i] = strings.Repeat("*", len(l))
		}
		domain = strings.Join(labels, ".") + domain[dot:]
	}

	return local + "@" + domain
}

// SanitizeQueryString reports whether rawQuery carries a sensitive key and
// must be redacted. Unparsable queries are redacted when any sensitive word
// appears anywhere.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		lower := strings.ToLower(rawQuery)
		for _, p := range sensitiveParams {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}

	for key := range values {
		lower := strings.ToLower(key)
		for _, p := range sensitiveParams {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}
	return false
}
