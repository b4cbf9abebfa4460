// Package qrgen calls the dynamic PromptPay QR generation webhook.
package qrgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
)

// Request is the JSON body sent to the generator.
type Request struct {
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	SessionToken string  `json:"session_token"`
	RefCode      string  `json:"ref_code"`
}

// Response is what the generator returns; every field is optional.
type Response struct {
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	SessionToken string  `json:"session_token"`
	EMV          *string `json:"emv"`
	QRURL        *string `json:"qr_url"`
	ExpiresEpoch int64   `json:"expires_epoch"`
	RefCode      string  `json:"ref_code"`
}

// Client posts signed JSON to the QR generation endpoint.
type Client struct {
	url    string
	secret string
	http   *resty.Client
	now    func() time.Time
}

// New returns a Client for the endpoint resolved from cfg. http may be nil.
func New(cfg *config.Config, http *resty.Client) *Client {
	if http == nil {
		http = resty.New()
	}
	http.SetTimeout(cfg.QRProxyTimeout)
	return &Client{
		url:    ResolveURL(cfg.QRGenerateURL, cfg.N8nWebhookURL),
		secret: cfg.N8nSharedSecret,
		http:   http,
		now:    time.Now,
	}
}

// Enabled reports whether a dynamic generator is configured.
func (c *Client) Enabled() bool { return c.url != "" }

// ResolveURL returns the https override when set, else the webhook URL with
// its last path segment replaced by qr-generate. Anything not https yields "".
func ResolveURL(override, webhook string) string {
	if override != "" && verifier.IsHTTPS(override) {
		return override
	}
	base := strings.TrimRight(webhook, "/")
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	if i := strings.LastIndex(u.Path, "/"); i >= 0 && i < len(u.Path)-1 {
		u.Path = u.Path[:i+1] + "qr-generate"
	} else {
		u.Path = "/webhook/qr-generate"
	}
	u.RawQuery, u.Fragment = "", ""
	derived := u.String()
	if !verifier.IsHTTPS(derived) {
		return ""
	}
	return derived
}

// Generate requests a fresh quote. Transport failures wrap
// ErrVerifierUnreachable; non-2xx or undecodable bodies wrap ErrBadBackendResponse.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal qr request: %w", err)
	}
	log := logging.FromContext(ctx).With(logging.KeySessionToken, req.SessionToken)
	log.Info("qr_proxy_outbound", "url", c.url)

	headers := signing.Headers(c.now().Unix(), body, c.secret, logging.CorrelationID(ctx), signing.IdempotencyKey(req.SessionToken, req.OrderID))
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url)
	if err != nil {
		log.Warn("qr_proxy_unreachable", "error", err)
		return nil, fmt.Errorf("qr generate: %v: %w", err, domain.ErrVerifierUnreachable)
	}
	log.Info("qr_proxy_response", "http_status", resp.StatusCode())
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("qr generate returned %d: %w", resp.StatusCode(), domain.ErrBadBackendResponse)
	}
	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode qr response: %v: %w", err, domain.ErrBadBackendResponse)
	}
	return &out, nil
}
