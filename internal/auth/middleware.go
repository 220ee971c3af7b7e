package auth

import (
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	AccessCookieName  = "sb_access_token"
	RefreshCookieName = "sb_refresh_token"
)

// TokenFromRequest returns the bearer token, falling back to the access cookie.
// An empty string means the request is anonymous.
func TokenFromRequest(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		if tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix)); tok != "" {
			return tok
		}
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
