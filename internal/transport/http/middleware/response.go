package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/scanpay-verify/internal/pkg/logging"
)

// errorBody matches the handler package's error envelope.
type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: msg, CorrelationID: logging.CorrelationID(r.Context())})
}
