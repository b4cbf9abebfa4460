package handler

import (
	"net/http"

	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/nonce"
	"github.com/scanpay-verify/internal/pkg/store"
	"github.com/scanpay-verify/internal/pkg/token"
	"github.com/scanpay-verify/internal/transport/http/middleware"
)

// NonceHandler issues anti-forgery tokens.
type NonceHandler struct {
	issuer       *nonce.Issuer
	secureCookie bool
}

func NewNonceHandler(issuer *nonce.Issuer, secureCookie bool) *NonceHandler {
	return &NonceHandler{issuer: issuer, secureCookie: secureCookie}
}

type NonceEnvelope struct {
	Nonce         string `json:"nonce"`
	CorrelationID string `json:"correlation_id"`
}

// Public mints the browser session cookie if needed and returns a rest nonce bound to it.
func (h *NonceHandler) Public(w http.ResponseWriter, r *http.Request) {
	sid := store.SessionID(r.Context())
	if sid == "" {
		var err error
		if sid, err = token.NewSessionID(); err != nil {
			writeError(w, r, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusOK, NonceEnvelope{
		Nonce:         h.issuer.Create(nonce.ActionPublic, sid),
		CorrelationID: logging.CorrelationID(r.Context()),
	})
}

// Admin returns an admin_action nonce for the authenticated user.
func (h *NonceHandler) Admin(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorEnvelope{Code: "auth_failed", Message: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, NonceEnvelope{
		Nonce:         h.issuer.Create(nonce.ActionAdmin, claims.UserID),
		CorrelationID: logging.CorrelationID(r.Context()),
	})
}
