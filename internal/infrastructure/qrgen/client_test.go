package qrgen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://qr.example/gen", ResolveURL("https://qr.example/gen", "https://n8n.example/webhook/verify"))
	assert.Equal(t, "https://n8n.example/webhook/qr-generate", ResolveURL("http://insecure/gen", "https://n8n.example/webhook/verify"))
	assert.Equal(t, "https://n8n.example/webhook/qr-generate", ResolveURL("", "https://n8n.example/webhook/verify/"))
	assert.Equal(t, "https://n8n.example/webhook/qr-generate", ResolveURL("", "https://n8n.example"))
	assert.Equal(t, "", ResolveURL("", "http://n8n.example/webhook/verify"))
	assert.Equal(t, "", ResolveURL("", ""))
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(&config.Config{N8nSharedSecret: "secret", QRProxyTimeout: time.Second}, resty.NewWithClient(srv.Client()))
	c.url = srv.URL + "/webhook/qr-generate"
	return c
}

func TestGenerate_SignedRequestAndDecode(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, signing.VerifyRequest(r.Header, body, "secret", time.Now(), time.Minute))

		var req Request
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, Request{OrderID: "o1", Amount: 250.5, Currency: "THB", SessionToken: "tok", RefCode: "1234567"}, req)

		_, _ = w.Write([]byte(`{"emv":"000201...","qr_url":"https://cdn/qr.png","expires_epoch":1700000060}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv).Generate(context.Background(), Request{OrderID: "o1", Amount: 250.5, Currency: "THB", SessionToken: "tok", RefCode: "1234567"})
	require.NoError(t, err)
	require.NotNil(t, out.QRURL)
	assert.Equal(t, "https://cdn/qr.png", *out.QRURL)
	assert.Equal(t, int64(1700000060), out.ExpiresEpoch)
}

func TestGenerate_Non2xxIsBadResponse(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Generate(context.Background(), Request{})
	assert.True(t, errors.Is(err, domain.ErrBadBackendResponse))
}

func TestGenerate_UnreachableServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(srv)
	srv.Close()

	_, err := c.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, domain.ErrVerifierUnreachable)
}
