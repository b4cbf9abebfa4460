package middleware

import (
	"net/http"

	"github.com/scanpay-verify/internal/pkg/store"
)

// SessionCookie is the browser session cookie that scopes the ephemeral store.
const SessionCookie = "san8n_sid"

// BrowserSession carries the san8n_sid cookie, when present and well formed,
// into the request context. It never mints one.
func BrowserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookie); err == nil && validSessionID(c.Value) {
			r = r.WithContext(store.WithSessionID(r.Context(), c.Value))
		}
		next.ServeHTTP(w, r)
	})
}

func validSessionID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
