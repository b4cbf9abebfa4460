package middleware

import (
	"net/http"

	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/nonce"
	"github.com/scanpay-verify/internal/pkg/store"
)

// NonceHeader carries the anti-forgery token.
const NonceHeader = "X-Scanpay-Nonce"

// RequirePublicNonce checks a rest nonce bound to the browser session.
func RequirePublicNonce(issuer *nonce.Issuer) func(http.Handler) http.Handler {
	return requireNonce(issuer, nonce.ActionPublic, func(r *http.Request) string {
		return store.SessionID(r.Context())
	})
}

// RequireAdminNonce checks an admin_action nonce bound to the authenticated
// user. It must run after Auth.
func RequireAdminNonce(issuer *nonce.Issuer) func(http.Handler) http.Handler {
	return requireNonce(issuer, nonce.ActionAdmin, func(r *http.Request) string {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			return c.UserID
		}
		return ""
	})
}

func requireNonce(issuer *nonce.Issuer, action string, subject func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !issuer.Verify(r.Header.Get(NonceHeader), action, subject(r)) {
				logging.FromContext(r.Context()).Warn("nonce check failed", "action", action, "path", r.URL.Path)
				writeJSONError(w, r, http.StatusForbidden, "auth_failed", "Security check failed.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
