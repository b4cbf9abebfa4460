package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scanpay-verify/internal/application/qr"
	"github.com/scanpay-verify/internal/application/session"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) VerifySlip(ctx context.Context, req session.VerifyRequest) (domain.Verdict, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Verdict), args.Error(1)
}

func (m *mockSessionSvc) ApplyCallback(ctx context.Context, sessionToken string, v domain.Verdict) error {
	return m.Called(ctx, sessionToken, v).Error(0)
}

func (m *mockSessionSvc) Approval(ctx context.Context, sessionToken string) (*domain.VerificationSession, error) {
	args := m.Called(ctx, sessionToken)
	if st, _ := args.Get(0).(*domain.VerificationSession); st != nil {
		return st, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Clear(ctx context.Context, sessionToken string) error {
	return m.Called(ctx, sessionToken).Error(0)
}

type mockQRSvc struct{ mock.Mock }

func (m *mockQRSvc) Reference(ctx context.Context, sessionToken string) (string, error) {
	args := m.Called(ctx, sessionToken)
	return args.String(0), args.Error(1)
}

func (m *mockQRSvc) Quote(ctx context.Context, req qr.QuoteRequest) (*domain.QRQuote, error) {
	args := m.Called(ctx, req)
	if q, _ := args.Get(0).(*domain.QRQuote); q != nil {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

const (
	sessionToken = "0123456789abcdef0123"
	secret       = "callback-secret"
	fiveMB       = 5 * 1024 * 1024
	pngMagic     = "\x89PNG\r\n\x1a\n"
)

func newPaymentHandler(s *mockSessionSvc, q *mockQRSvc) *PaymentHandler {
	return NewPaymentHandler(s, q, fiveMB, secret, 5*time.Minute)
}

func multipartReq(t *testing.T, fields map[string]string, slip []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if slip != nil {
		fw, err := mw.CreateFormFile("slip_image", "slip.png")
		require.NoError(t, err)
		_, err = fw.Write(slip)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/v1/verify-slip", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- amount ---

func TestAmount_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
	}
	for in, want := range map[string]float64{
		`{"a": 12.5}`:       12.5,
		`{"a": "1,234.50"}`: 1234.5,
		`{"a": "1234,50"}`:  1234.5,
		`{"a": ""}`:         0,
	} {
		v.A = 0
		require.NoError(t, json.Unmarshal([]byte(in), &v), in)
		assert.Equal(t, want, float64(v.A), in)
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": "-5"}`), &v))
}

// --- qr-proxy ---

func TestQRProxy_HappyPath(t *testing.T) {
	s, q := &mockSessionSvc{}, &mockQRSvc{}
	url := "https://qr.example/x.png"
	q.On("Quote", mock.Anything, qr.QuoteRequest{SessionToken: sessionToken, OrderID: "o1", Amount: 1234.5}).
		Return(&domain.QRQuote{OrderID: "o1", Amount: 1234.5, Currency: "THB", SessionToken: sessionToken, QRImageURL: &url, ExpiresEpoch: 99, RefCode: "1234567"}, nil)

	body := `{"session_token":"` + sessionToken + `","order_id":"o1","order_total":"1,234.50"}`
	rr := httptest.NewRecorder()
	newPaymentHandler(s, q).QRProxy(rr, httptest.NewRequest(http.MethodPost, "/v1/qr-proxy", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, "1234567", out["ref_code"])
	assert.Equal(t, url, out["qr_url"])
	assert.Nil(t, out["emv"])
	assert.Contains(t, out, "correlation_id")
}

func TestQRProxy_ShortToken(t *testing.T) {
	rr := httptest.NewRecorder()
	body := `{"session_token":"short","order_total":10}`
	q := &mockQRSvc{}
	newPaymentHandler(&mockSessionSvc{}, q).QRProxy(rr, httptest.NewRequest(http.MethodPost, "/v1/qr-proxy", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, "bad_request", out["code"])
	assert.Equal(t, "Invalid request.", out["message"])
	assert.NotContains(t, rr.Body.String(), "QuoteRequest")
	q.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestQRProxy_BackendDown(t *testing.T) {
	q := &mockQRSvc{}
	q.On("Quote", mock.Anything, mock.Anything).Return(nil, domain.ErrVerifierUnreachable)
	rr := httptest.NewRecorder()
	body := `{"session_token":"` + sessionToken + `","order_total":10}`
	newPaymentHandler(&mockSessionSvc{}, q).QRProxy(rr, httptest.NewRequest(http.MethodPost, "/v1/qr-proxy", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "verifier_unreachable", decodeBody(t, rr)["code"])
}

// --- verify-slip ---

func TestVerifySlip_Approved(t *testing.T) {
	s := &mockSessionSvc{}
	slip := []byte(pngMagic + "payload")
	s.On("VerifySlip", mock.Anything, mock.MatchedBy(func(req session.VerifyRequest) bool {
		return req.SessionToken == sessionToken && req.OrderTotal == 1234.5 && bytes.Equal(req.Slip.Data, slip) && req.Slip.Filename == "slip.png"
	})).Return(domain.Verdict{Status: domain.StatusApproved, ReferenceID: "R1", ApprovedAmount: 1234.5}, nil)

	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken, "order_total": "1234,50"}, slip))

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, "approved", out["status"])
	assert.Equal(t, "R1", out["reference_id"])
	assert.Equal(t, 1234.5, out["approved_amount"])
	assert.NotContains(t, out, "reason")
}

func TestVerifySlip_RejectedIsNotAnError(t *testing.T) {
	s := &mockSessionSvc{}
	s.On("VerifySlip", mock.Anything, mock.Anything).Return(domain.Rejected(domain.ReasonVerifierUnreachable), nil)

	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken}, []byte(pngMagic)))

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, "rejected", out["status"])
	assert.Equal(t, "verifier_unreachable", out["reason"])
	assert.NotContains(t, out, "approved_amount")
}

func TestVerifySlip_MissingFile(t *testing.T) {
	s := &mockSessionSvc{}
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken}, nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "upload_missing", decodeBody(t, rr)["code"])
	s.AssertNotCalled(t, "VerifySlip", mock.Anything, mock.Anything)
}

func TestVerifySlip_TooLarge(t *testing.T) {
	s := &mockSessionSvc{}
	big := append([]byte(pngMagic), make([]byte, 6*1024*1024-len(pngMagic))...)
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken}, big))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "upload_size", decodeBody(t, rr)["code"])
	s.AssertNotCalled(t, "VerifySlip", mock.Anything, mock.Anything)
}

func TestVerifySlip_InvalidType(t *testing.T) {
	s := &mockSessionSvc{}
	s.On("VerifySlip", mock.Anything, mock.Anything).Return(domain.Verdict{}, domain.ErrInvalidFileType)
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken}, []byte("GIF89a")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "upload_type", decodeBody(t, rr)["code"])
}

func TestVerifySlip_InternalErrorHidesDetail(t *testing.T) {
	s := &mockSessionSvc{}
	s.On("VerifySlip", mock.Anything, mock.Anything).Return(domain.Verdict{}, assert.AnError)
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).VerifySlip(rr, multipartReq(t, map[string]string{"session_token": sessionToken}, []byte(pngMagic)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
}

// --- callback ---

func signedCallback(t *testing.T, body []byte, ts int64, key string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/callback", bytes.NewReader(body))
	r.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(signing.HeaderSignature, signing.Sign(ts, body, key))
	return r
}

func TestCallback_Valid(t *testing.T) {
	s := &mockSessionSvc{}
	s.On("ApplyCallback", mock.Anything, sessionToken, domain.Verdict{Status: "approved", ReferenceID: "CB", ApprovedAmount: 99}).Return(nil)
	h := newPaymentHandler(s, &mockQRSvc{})

	body := []byte(`{"session_token":"` + sessionToken + `","status":"approved","reference_id":"CB","approved_amount":"99.00"}`)
	rr := httptest.NewRecorder()
	h.Callback(rr, signedCallback(t, body, time.Now().Unix(), secret))

	assert.Equal(t, http.StatusOK, rr.Code)
	s.AssertExpectations(t)
}

func TestCallback_BadSignature(t *testing.T) {
	s := &mockSessionSvc{}
	body := []byte(`{"session_token":"` + sessionToken + `","status":"approved"}`)
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).Callback(rr, signedCallback(t, body, time.Now().Unix(), "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "bad_signature", decodeBody(t, rr)["code"])
	s.AssertNotCalled(t, "ApplyCallback", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallback_StaleTimestamp(t *testing.T) {
	s := &mockSessionSvc{}
	body := []byte(`{"session_token":"` + sessionToken + `","status":"approved"}`)
	rr := httptest.NewRecorder()
	newPaymentHandler(s, &mockQRSvc{}).Callback(rr, signedCallback(t, body, time.Now().Add(-10*time.Minute).Unix(), secret))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "old_timestamp", decodeBody(t, rr)["code"])
}

// --- error table ---

func TestWriteError_Kinds(t *testing.T) {
	cases := map[error]int{
		domain.ErrSessionExpired:   http.StatusConflict,
		domain.ErrPermissionDenied: http.StatusForbidden,
		domain.ErrOrderNotFound:    http.StatusNotFound,
		domain.ErrRateLimited:      http.StatusTooManyRequests,
		domain.ErrUploadTooLarge:   http.StatusBadRequest,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
		assert.Equal(t, status, rr.Code, err.Error())
	}

	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), domain.ErrSessionExpired)
	assert.Equal(t, "Payment verification is required before placing the order.", decodeBody(t, rr)["message"])
}
