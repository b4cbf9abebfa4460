package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scanpay-verify/internal/application/qr"
	"github.com/scanpay-verify/internal/application/session"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/amount"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/scanpay-verify/internal/pkg/validate"
)

const (
	// multipartOverhead is allowed on top of the slip limit for the other form fields.
	multipartOverhead = 1 << 20
	maxJSONBody       = 64 << 10
)

// Amount accepts a JSON number or a string such as "1,234.50" or "1234,50".
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	if s == "" {
		*a = 0
		return nil
	}
	f, err := amount.Parse(s)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// PaymentHandler serves the public payment endpoints.
type PaymentHandler struct {
	sessions       session.Service
	quotes         qr.Service
	maxFileSize    int64
	callbackSecret string
	callbackSkew   time.Duration
	now            func() time.Time
}

func NewPaymentHandler(sessions session.Service, quotes qr.Service, maxFileSize int64, callbackSecret string, callbackSkew time.Duration) *PaymentHandler {
	return &PaymentHandler{
		sessions:       sessions,
		quotes:         quotes,
		maxFileSize:    maxFileSize,
		callbackSecret: callbackSecret,
		callbackSkew:   callbackSkew,
		now:            time.Now,
	}
}

type qrProxyRequest struct {
	SessionToken string `json:"session_token"`
	OrderID      string `json:"order_id"`
	OrderTotal   Amount `json:"order_total"`
}

func (h *PaymentHandler) QRProxy(w http.ResponseWriter, r *http.Request) {
	var body qrProxyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	req := qr.QuoteRequest{SessionToken: body.SessionToken, OrderID: body.OrderID, Amount: float64(body.OrderTotal)}
	if err := validate.Struct(req); err != nil {
		writeInvalid(w, r, err)
		return
	}
	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QREnvelope{
		OrderID:       q.OrderID,
		Amount:        q.Amount,
		Currency:      q.Currency,
		SessionToken:  q.SessionToken,
		EMV:           q.EMVPayload,
		QRURL:         q.QRImageURL,
		ExpiresEpoch:  q.ExpiresEpoch,
		RefCode:       q.RefCode,
		CorrelationID: logging.CorrelationID(r.Context()),
	})
}

func (h *PaymentHandler) VerifySlip(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxFileSize + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, domain.ErrUploadTooLarge)
			return
		}
		writeBadRequest(w, r, "invalid multipart form")
		return
	}

	total, err := amount.Parse(r.FormValue("order_total"))
	if err != nil && r.FormValue("order_total") != "" {
		writeBadRequest(w, r, "invalid order_total")
		return
	}
	req := session.VerifyRequest{
		SessionToken: r.FormValue("session_token"),
		OrderID:      r.FormValue("order_id"),
		OrderTotal:   total,
	}
	if err := validate.Struct(req); err != nil {
		writeInvalid(w, r, err)
		return
	}

	f, header, err := r.FormFile("slip_image")
	if err != nil {
		writeError(w, r, domain.ErrUploadMissing)
		return
	}
	defer f.Close()
	if header.Size > h.maxFileSize {
		writeError(w, r, domain.ErrUploadTooLarge)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("read slip: %w", err))
		return
	}
	req.Slip = session.Slip{Data: data, Filename: header.Filename, Size: header.Size}

	v, err := h.sessions.VerifySlip(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdictEnvelope(v, logging.CorrelationID(r.Context())))
}

type callbackRequest struct {
	SessionToken   string `json:"session_token" validate:"required,min=16,max=128"`
	Status         string `json:"status" validate:"required"`
	ReferenceID    string `json:"reference_id"`
	ApprovedAmount Amount `json:"approved_amount"`
	Reason         string `json:"reason"`
	Message        string `json:"message"`
}

// Callback accepts a verdict pushed by the backend, signed with the shared secret.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	if err := signing.VerifyRequest(r.Header, body, h.callbackSecret, h.now(), h.callbackSkew); err != nil {
		logging.FromContext(r.Context()).Warn("callback signature rejected", "error", err)
		writeError(w, r, err)
		return
	}
	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalid(w, r, err)
		return
	}
	v := domain.Verdict{
		Status:         req.Status,
		ReferenceID:    req.ReferenceID,
		ApprovedAmount: float64(req.ApprovedAmount),
		Reason:         req.Reason,
		Message:        req.Message,
	}
	if err := h.sessions.ApplyCallback(r.Context(), req.SessionToken, v); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, CorrelationID: logging.CorrelationID(r.Context())})
}
