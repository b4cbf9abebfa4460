package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scanpay-verify/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
)

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("table unavailable")
}

func hit(h http.Handler, remote string, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodPost, "/v1/verify-slip", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimiter_SixthRequestRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	counter := memstore.New(func() time.Time { return now })
	h := NewRateLimiter(counter, 5, time.Minute).Limit(http.HandlerFunc(okHandler))

	for i := 1; i <= 5; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "203.0.113.7:5000", nil), "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "203.0.113.7:5000", nil))

	// Other clients keep their own window.
	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.8:5000", nil))

	// A new window starts once the old one elapses.
	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.7:5000", nil))
}

func TestRateLimiter_KeysOnResolvedClientIP(t *testing.T) {
	counter := memstore.New(nil)
	h := NewRateLimiter(counter, 1, time.Minute).Limit(http.HandlerFunc(okHandler))

	// Same proxy, different forwarded clients.
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "8.8.8.8"}))
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "1.1.1.1"}))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "8.8.8.8"}))
}

func TestRateLimiter_CounterFailureFailsOpen(t *testing.T) {
	h := NewRateLimiter(failingCounter{}, 1, time.Minute).Limit(http.HandlerFunc(okHandler))
	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.7:5000", nil))
	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.7:5000", nil))
}
