package verifier

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"time"
	"unicode/utf8"

	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
)

const excerptLimit = 300

// PingResult describes a connectivity test against the configured backend.
type PingResult struct {
	OK             bool   `json:"success"`
	Backend        string `json:"backend"`
	Message        string `json:"message"`
	StatusCode     int    `json:"status_code,omitempty"`
	LatencyMS      int64  `json:"latency"`
	Classification string `json:"error_type,omitempty"`
	Hint           string `json:"hint,omitempty"`
	Excerpt        string `json:"excerpt,omitempty"`
}

// Ping sends a signed {type: ping} payload and classifies the outcome. It
// is never retried.
func (c *signedClient) Ping(ctx context.Context) PingResult {
	res := PingResult{Backend: c.name}
	if c.url == "" || c.secret == "" {
		res.Classification = "not_configured"
		res.Message = "Please configure backend URL and secret first."
		return res
	}
	if !IsHTTPS(c.url) {
		res.Classification = "insecure_url"
		res.Message = "Backend URL must use HTTPS."
		return res
	}

	ts := c.now().Unix()
	body, _ := json.Marshal(map[string]any{
		"type":      "ping",
		"timestamp": ts,
		"source":    "scanpay-verify",
		"backend":   c.name,
	})
	headers := signing.Headers(ts, body, c.secret, logging.CorrelationID(ctx), "")
	headers["X-Test-Ping"] = "true"

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url)
	res.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Classification, res.Hint = classifyError(err)
		res.Message = err.Error()
		logging.FromContext(ctx).Warn("backend_ping_failed", "backend", c.name, "error_type", res.Classification, "error", err)
		return res
	}

	res.StatusCode = resp.StatusCode()
	msg := bodyMessage(resp.Body())
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		res.OK = true
		res.Message = "Backend test successful"
		if msg != "" {
			res.Message += ": " + msg
		}
		return res
	}
	res.Classification, res.Hint = classifyStatus(res.StatusCode)
	res.Excerpt = excerpt(resp.Body())
	res.Message = resp.Status()
	if msg != "" {
		res.Message = msg
	}
	logging.FromContext(ctx).Warn("backend_ping_failed", "backend", c.name, "http_status", res.StatusCode, "error_type", res.Classification)
	return res
}

func classifyError(err error) (string, string) {
	var (
		netErr  net.Error
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		unkErr  x509.UnknownAuthorityError
		hostErr x509.HostnameError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout", "The request timed out. Check server availability, firewall, or increase timeout."
	case errors.As(err, &dnsErr):
		return "dns_error", "DNS resolution failed. Verify the domain or DNS configuration."
	case errors.As(err, &certErr), errors.As(err, &unkErr), errors.As(err, &hostErr):
		return "ssl_error", "SSL handshake/verification failed. Ensure a valid HTTPS certificate chain."
	default:
		return "network_error", ""
	}
}

func classifyStatus(code int) (string, string) {
	switch {
	case code == 400:
		return "bad_request", "Backend rejected the payload. Check required headers and payload format."
	case code == 401 || code == 403:
		return "auth_error", "Authentication failed: verify shared secret/signature and backend auth logic."
	case code == 404:
		return "not_found", "Endpoint not found: verify the URL path and route configuration."
	case code == 408 || code == 504:
		return "timeout", "Gateway timeout: backend took too long to respond."
	case code == 429:
		return "rate_limited", "Rate limited: slow down requests or adjust backend limits."
	case code >= 500:
		return "upstream_error", "Server error from backend. Check backend logs."
	default:
		return "http_error", ""
	}
}

// bodyMessage extracts message, error or status from a JSON body.
func bodyMessage(body []byte) string {
	var m map[string]any
	if json.Unmarshal(body, &m) != nil {
		return ""
	}
	for _, k := range []string{"message", "error"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := m["status"].(string); ok && s != "" {
		return "Status: " + s
	}
	return ""
}

// excerpt returns at most excerptLimit runes of body.
func excerpt(body []byte) string {
	if utf8.RuneCount(body) <= excerptLimit {
		return string(body)
	}
	runes := []rune(string(body))
	return string(runes[:excerptLimit])
}
