package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
)

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// MessageEnvelope is the generic success wrapper.
type MessageEnvelope struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// VerdictEnvelope is the verify-slip response. Approved verdicts carry the
// reference and amount, rejected ones the reason and message.
type VerdictEnvelope struct {
	Status         string   `json:"status"`
	ReferenceID    string   `json:"reference_id,omitempty"`
	ApprovedAmount *float64 `json:"approved_amount,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	Message        string   `json:"message,omitempty"`
	CorrelationID  string   `json:"correlation_id"`
}

// QREnvelope is the qr-proxy response.
type QREnvelope struct {
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	SessionToken  string  `json:"session_token"`
	EMV           *string `json:"emv"`
	QRURL         *string `json:"qr_url"`
	ExpiresEpoch  int64   `json:"expires_epoch"`
	RefCode       string  `json:"ref_code"`
	CorrelationID string  `json:"correlation_id"`
}

// OrderEnvelope wraps order responses.
type OrderEnvelope struct {
	Order         *domain.Order   `json:"order"`
	Verdict       *domain.Verdict `json:"verdict,omitempty"`
	CorrelationID string          `json:"correlation_id"`
}

func verdictEnvelope(v domain.Verdict, cid string) VerdictEnvelope {
	if v.Approved() {
		amt := v.ApprovedAmount
		return VerdictEnvelope{Status: v.Status, ReferenceID: v.ReferenceID, ApprovedAmount: &amt, CorrelationID: cid}
	}
	return VerdictEnvelope{Status: v.Status, Reason: v.Reason, Message: v.Message, CorrelationID: cid}
}

type errorKind struct {
	err     error
	status  int
	code    string
	message string
}

// errorKinds maps domain errors to the client-facing status, code and message.
var errorKinds = []errorKind{
	{domain.ErrUploadMissing, http.StatusBadRequest, "upload_missing", "Please upload a payment slip."},
	{domain.ErrUploadTooLarge, http.StatusBadRequest, "upload_size", "File size exceeds the allowed limit."},
	{domain.ErrInvalidFileType, http.StatusBadRequest, "upload_type", "Only JPEG and PNG images are allowed."},
	{domain.ErrVerifierUnreachable, http.StatusBadGateway, "verifier_unreachable", "The payment service is unavailable. Please try again."},
	{domain.ErrBadBackendResponse, http.StatusBadGateway, "bad_response", "The payment service returned an invalid response."},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Please wait a minute and try again."},
	{domain.ErrAuthFailed, http.StatusForbidden, "auth_failed", "Security check failed."},
	{domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied", "Permission denied."},
	{domain.ErrSessionExpired, http.StatusConflict, "session_expired", "Payment verification is required before placing the order."},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "Order not found."},
	{signing.ErrBadSignature, http.StatusUnauthorized, "bad_signature", "Invalid signature."},
	{signing.ErrStaleTimestamp, http.StatusUnauthorized, "old_timestamp", "Request timestamp is too old."},
	{domain.ErrConflict, http.StatusConflict, "conflict", "The resource already exists."},
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request", "Invalid request."},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its kind. Unknown errors are logged and reported as
// a generic 500 carrying only the correlation id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	cid := logging.CorrelationID(r.Context())
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			writeJSON(w, k.status, ErrorEnvelope{Code: k.code, Message: k.message, CorrelationID: cid})
			return
		}
	}
	logging.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorEnvelope{Code: "internal_error", Message: "An internal error occurred.", CorrelationID: cid})
}

// writeBadRequest reports a malformed or invalid request with a specific message.
func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Code: "bad_request", Message: msg, CorrelationID: logging.CorrelationID(r.Context())})
}

// writeInvalid reports a failed struct validation. The validator's detail is
// logged, never returned.
func writeInvalid(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Info("request validation failed", "path", r.URL.Path, "error", err)
	writeBadRequest(w, r, "Invalid request.")
}
