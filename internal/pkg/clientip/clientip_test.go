package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", Resolve(req))
}

func TestResolve_XRealIP_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "9.10.11.12", Resolve(req))
}

func TestResolve_RemoteAddr_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", Resolve(req))
}

func TestResolve_CloudflareTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "8.8.8.8")
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	assert.Equal(t, "8.8.8.8", Resolve(req))
}

func TestResolve_SkipsPrivateHeaderValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7")
	req.Header.Set("X-Real-Ip", "2.2.2.2")
	assert.Equal(t, "2.2.2.2", Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Client-IP", "127.0.0.1")
	req.RemoteAddr = "203.0.113.9:1000"
	assert.Equal(t, "203.0.113.9", Resolve(req))
}

func TestResolve_GarbageHeaderIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.RemoteAddr = "5.5.5.5:80"
	assert.Equal(t, "5.5.5.5", Resolve(req))
}
