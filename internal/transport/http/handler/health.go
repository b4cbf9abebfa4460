package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler handles liveness probes.
type HealthHandler struct {
	backend string
}

func NewHealthHandler(backend string) *HealthHandler { return &HealthHandler{backend: backend} }

type HealthEnvelope struct {
	Message string `json:"message"`
	Backend string `json:"backend,omitempty"`
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, HealthEnvelope{Message: "pong"})
	case "status":
		writeJSON(w, http.StatusOK, HealthEnvelope{Message: "ok", Backend: h.backend})
	default:
		writeBadRequest(w, r, "unknown action")
	}
}
