package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/scanpay-verify/internal/application/checkout"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/validate"
)

// CheckoutHandler exposes the verification gate and order placement.
type CheckoutHandler struct {
	svc checkout.Service
}

func NewCheckoutHandler(svc checkout.Service) *CheckoutHandler { return &CheckoutHandler{svc: svc} }

type checkoutRequest struct {
	SessionToken string `json:"session_token" validate:"required,min=16,max=128"`
	OrderTotal   Amount `json:"order_total"`
	Currency     string `json:"currency"`
}

func decodeCheckout(w http.ResponseWriter, r *http.Request) (checkoutRequest, bool) {
	var body checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return body, false
	}
	if err := validate.Struct(body); err != nil {
		writeInvalid(w, r, err)
		return body, false
	}
	return body, true
}

func (h *CheckoutHandler) Validate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCheckout(w, r)
	if !ok {
		return
	}
	if err := h.svc.Validate(r.Context(), body.SessionToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, CorrelationID: logging.CorrelationID(r.Context())})
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCheckout(w, r)
	if !ok {
		return
	}
	req := checkout.PlaceOrderRequest{SessionToken: body.SessionToken, OrderTotal: float64(body.OrderTotal), Currency: body.Currency}
	if err := validate.Struct(req); err != nil {
		writeInvalid(w, r, err)
		return
	}
	o, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, OrderEnvelope{Order: o, CorrelationID: logging.CorrelationID(r.Context())})
}
