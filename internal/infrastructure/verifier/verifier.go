// Package verifier calls the external slip verification backend over signed
// HTTPS and normalises whatever comes back into a domain.Verdict.
package verifier

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/domain"
)

// Input is one slip verification request.
type Input struct {
	Slip         []byte
	Filename     string
	MIME         string
	OrderID      string
	OrderTotal   float64
	Currency     string
	SessionToken string
}

// Verifier is implemented by every backend variant.
type Verifier interface {
	Name() string
	// Verify never returns an error: transport and decoding failures become
	// rejected verdicts with reason verifier_unreachable or bad_response.
	Verify(ctx context.Context, in Input) domain.Verdict
	Ping(ctx context.Context) PingResult
}

// Options tunes the shared signed client.
type Options struct {
	Timeout time.Duration
	Retries int
	// Sleep waits between attempts; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns the random extra delay added to each backoff; nil means [0, 500ms).
	Jitter func() time.Duration
	// HTTP overrides the resty client; nil builds one with Timeout.
	HTTP *resty.Client
}

// New builds the variant selected in cfg.
func New(cfg *config.Config, opts Options) Verifier {
	if opts.Timeout == 0 {
		opts.Timeout = cfg.VerifierTimeout
	}
	if opts.Retries == 0 {
		opts.Retries = cfg.VerifierRetries
	}
	t := cfg.Verifier()
	c := newSignedClient(t.Name, t.URL, t.Secret, opts)
	if t.Name == config.BackendLaravel {
		return &Laravel{c}
	}
	return &N8n{c}
}

// N8n posts slips to an n8n webhook.
type N8n struct{ *signedClient }

func (v *N8n) Name() string { return config.BackendN8n }

// Laravel posts slips to the Laravel verification API with the same wire contract.
type Laravel struct{ *signedClient }

func (v *Laravel) Name() string { return config.BackendLaravel }

// IsHTTPS reports whether raw is an absolute https URL with a host.
func IsHTTPS(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https") && u.Host != ""
}
