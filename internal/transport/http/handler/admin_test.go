package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scanpay-verify/internal/application/admin"
	"github.com/scanpay-verify/internal/application/checkout"
	"github.com/scanpay-verify/internal/domain"
	jwtinfra "github.com/scanpay-verify/internal/infrastructure/jwt"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAdminSvc struct{ mock.Mock }

var _ admin.Service = (*mockAdminSvc)(nil)

func (m *mockAdminSvc) order(args mock.Arguments) (*domain.Order, error) {
	if o, _ := args.Get(0).(*domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdminSvc) GetOrder(ctx context.Context, a domain.Actor, id string) (*domain.Order, error) {
	return m.order(m.Called(ctx, a, id))
}

func (m *mockAdminSvc) Approve(ctx context.Context, a domain.Actor, id string) (*domain.Order, error) {
	return m.order(m.Called(ctx, a, id))
}

func (m *mockAdminSvc) Reject(ctx context.Context, a domain.Actor, id, reason string) (*domain.Order, error) {
	return m.order(m.Called(ctx, a, id, reason))
}

func (m *mockAdminSvc) Reverify(ctx context.Context, a domain.Actor, id string) (*domain.Order, domain.Verdict, error) {
	args := m.Called(ctx, a, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Get(1).(domain.Verdict), args.Error(2)
}

func (m *mockAdminSvc) PingBackend(ctx context.Context, a domain.Actor) (verifier.PingResult, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(verifier.PingResult), args.Error(1)
}

func (m *mockAdminSvc) Slip(ctx context.Context, a domain.Actor, id string) ([]byte, string, error) {
	args := m.Called(ctx, a, id)
	b, _ := args.Get(0).([]byte)
	return b, args.String(1), args.Error(2)
}

type mockCheckoutSvc struct{ mock.Mock }

var _ checkout.Service = (*mockCheckoutSvc)(nil)

func (m *mockCheckoutSvc) Validate(ctx context.Context, sessionToken string) error {
	return m.Called(ctx, sessionToken).Error(0)
}

func (m *mockCheckoutSvc) PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	if o, _ := args.Get(0).(*domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func staffReq(method, target, id string, body []byte) *http.Request {
	claims := &jwtinfra.Claims{UserID: "u1", Name: "Somchai", Capabilities: []string{domain.CapManageStore, domain.CapManagePayments}}
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r = r.WithContext(middleware.WithClaims(r.Context(), claims))
	return withChiID(r, id)
}

func TestAdmin_MissingClaims(t *testing.T) {
	svc := &mockAdminSvc{}
	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Approve(rr, withChiID(httptest.NewRequest(http.MethodPost, "/", nil), "o1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdmin_RejectPassesReason(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Reject", mock.Anything, mock.MatchedBy(func(a domain.Actor) bool { return a.UserID == "u1" }), "o1", "fake slip").
		Return(&domain.Order{OrderID: "o1", Status: domain.OrderOnHold}, nil)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Reject(rr, staffReq(http.MethodPost, "/v1/admin/orders/o1/reject", "o1", []byte(`{"reason":"fake slip"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.OrderOnHold, decodeBody(t, rr)["order"].(map[string]any)["status"])
}

func TestAdmin_RejectEmptyBody(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Reject", mock.Anything, mock.Anything, "o1", "").Return(&domain.Order{OrderID: "o1"}, nil)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Reject(rr, staffReq(http.MethodPost, "/", "o1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdmin_PermissionDenied(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Approve", mock.Anything, mock.Anything, "o1").Return(nil, domain.ErrPermissionDenied)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Approve(rr, staffReq(http.MethodPost, "/", "o1", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "permission_denied", decodeBody(t, rr)["code"])
}

func TestAdmin_ReverifyIncludesVerdict(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Reverify", mock.Anything, mock.Anything, "o1").
		Return(&domain.Order{OrderID: "o1"}, domain.Rejected("amount_mismatch"), nil)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Reverify(rr, staffReq(http.MethodPost, "/", "o1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "amount_mismatch", decodeBody(t, rr)["verdict"].(map[string]any)["reason"])
}

func TestAdmin_Slip(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Slip", mock.Anything, mock.Anything, "o1").Return([]byte("jpeg"), "image/jpeg", nil)

	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Slip(rr, staffReq(http.MethodGet, "/", "o1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", rr.Body.String())
}

func TestCheckout_ValidateBlocked(t *testing.T) {
	svc := &mockCheckoutSvc{}
	svc.On("Validate", mock.Anything, sessionToken).Return(domain.ErrSessionExpired)

	rr := httptest.NewRecorder()
	body := []byte(`{"session_token":"` + sessionToken + `"}`)
	NewCheckoutHandler(svc).Validate(rr, httptest.NewRequest(http.MethodPost, "/v1/checkout/validate", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Payment verification is required before placing the order.", decodeBody(t, rr)["message"])
}

func TestCheckout_PlaceOrder(t *testing.T) {
	svc := &mockCheckoutSvc{}
	svc.On("PlaceOrder", mock.Anything, checkout.PlaceOrderRequest{SessionToken: sessionToken, OrderTotal: 250, Currency: "THB"}).
		Return(&domain.Order{OrderID: "01J", Status: domain.OrderPaid}, nil)

	rr := httptest.NewRecorder()
	body := []byte(`{"session_token":"` + sessionToken + `","order_total":"250.00","currency":"THB"}`)
	NewCheckoutHandler(svc).PlaceOrder(rr, httptest.NewRequest(http.MethodPost, "/v1/checkout/orders", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "01J", decodeBody(t, rr)["order"].(map[string]any)["id"])
}
