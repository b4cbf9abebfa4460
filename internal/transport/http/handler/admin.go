package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/scanpay-verify/internal/application/admin"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/transport/http/middleware"
)

// AdminHandler serves the staff override endpoints.
type AdminHandler struct {
	svc admin.Service
}

func NewAdminHandler(svc admin.Service) *AdminHandler { return &AdminHandler{svc: svc} }

func actorFrom(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorEnvelope{Code: "auth_failed", Message: "unauthorized", CorrelationID: logging.CorrelationID(r.Context())})
		return domain.Actor{}, false
	}
	return claims.Actor(), true
}

func (h *AdminHandler) writeOrder(w http.ResponseWriter, r *http.Request, o *domain.Order, v *domain.Verdict) {
	writeJSON(w, http.StatusOK, OrderEnvelope{Order: o, Verdict: v, CorrelationID: logging.CorrelationID(r.Context())})
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, nil)
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, nil)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is a rejection without a reason.
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil && err != io.EOF {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	o, err := h.svc.Reject(r.Context(), actor, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, nil)
}

func (h *AdminHandler) Reverify(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	o, v, err := h.svc.Reverify(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, &v)
}

func (h *AdminHandler) PingBackend(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	res, err := h.svc.PingBackend(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Slip streams the order's stored slip image.
func (h *AdminHandler) Slip(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	data, ct, err := h.svc.Slip(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(data)
}
