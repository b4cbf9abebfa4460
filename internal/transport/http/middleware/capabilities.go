package middleware

import (
	"net/http"

	"github.com/scanpay-verify/internal/pkg/logging"
)

// RequireCapabilities allows the request only when the JWT carries every one
// of caps. Each capability is checked on its own.
func RequireCapabilities(caps ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, r, http.StatusUnauthorized, "auth_failed", "unauthorized")
				return
			}
			actor := claims.Actor()
			for _, c := range caps {
				if !actor.Can(c) {
					logging.FromContext(r.Context()).Warn("capability missing", "user_id", actor.UserID, "capability", c)
					writeJSONError(w, r, http.StatusForbidden, "permission_denied", "Permission denied.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
