package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/amount"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
)

const (
	backoffBase = time.Second
	backoffCap  = 8 * time.Second
	maxJitter   = 500 * time.Millisecond
)

// signedClient is the helper shared by both variants: multipart body,
// HMAC envelope, retry with backoff.
type signedClient struct {
	name    string
	url     string
	secret  string
	http    *resty.Client
	retries int
	sleep   func(context.Context, time.Duration) error
	jitter  func() time.Duration
	now     func() time.Time
}

func newSignedClient(name, url, secret string, opts Options) *signedClient {
	c := &signedClient{
		name:    name,
		url:     url,
		secret:  secret,
		http:    opts.HTTP,
		retries: min(max(opts.Retries, 0), 3),
		sleep:   opts.Sleep,
		jitter:  opts.Jitter,
		now:     time.Now,
	}
	if c.http == nil {
		c.http = resty.New()
	}
	if opts.Timeout > 0 {
		c.http.SetTimeout(opts.Timeout)
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.jitter == nil {
		c.jitter = func() time.Duration { return rand.N(maxJitter) }
	}
	return c
}

// backoff returns the wait before retry n (1-based), without jitter.
func backoff(n int) time.Duration {
	return min(backoffBase<<(n-1), backoffCap)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(resp *resty.Response, err error) bool {
	return err != nil || resp.StatusCode() >= 500
}

// post sends body with a fresh signature per attempt. Network failures and
// 5xx are retried up to c.retries times; any 2xx-4xx is final.
func (c *signedClient) post(ctx context.Context, log *slog.Logger, contentType string, body []byte, idemKey string) (*resty.Response, error) {
	var (
		resp *resty.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt) + c.jitter()
			log.Info("verifier_retry", "attempt", attempt+1, "wait_ms", wait.Milliseconds())
			if serr := c.sleep(ctx, wait); serr != nil {
				return resp, serr
			}
		}
		headers := signing.Headers(c.now().Unix(), body, c.secret, logging.CorrelationID(ctx), idemKey)
		start := time.Now()
		resp, err = c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetHeader("Content-Type", contentType).
			SetBody(body).
			Post(c.url)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			log.Warn("verifier_attempt_failed", "attempt", attempt+1, "latency_ms", elapsed, "error", err)
		} else {
			log.Info("verifier_attempt", "attempt", attempt+1, "http_status", resp.StatusCode(), "latency_ms", elapsed)
		}
		if !retryable(resp, err) || attempt >= c.retries {
			break
		}
	}
	if err == nil && resp.StatusCode() >= 500 {
		err = fmt.Errorf("backend returned %d after %d retries", resp.StatusCode(), c.retries)
	}
	return resp, err
}

// Verify implements the shared wire contract for both variants.
func (c *signedClient) Verify(ctx context.Context, in Input) domain.Verdict {
	log := logging.FromContext(ctx).With("backend", c.name, logging.KeySessionToken, in.SessionToken, "order_id", in.OrderID)
	if !IsHTTPS(c.url) {
		log.Warn("verifier_url_rejected", "reason", "empty or non-https url")
		return domain.Rejected(domain.ReasonVerifierUnreachable)
	}
	body, contentType, err := buildMultipart(in)
	if err != nil {
		log.Error("verifier_body_failed", "error", err)
		return domain.Rejected(domain.ReasonVerifierUnreachable)
	}
	resp, err := c.post(ctx, log, contentType, body, signing.IdempotencyKey(in.SessionToken, in.OrderID))
	if err != nil {
		log.Warn("verifier_unreachable", "retries", c.retries, "error", err)
		return domain.Rejected(domain.ReasonVerifierUnreachable)
	}
	v, err := decodeVerdict(resp.Body())
	if err != nil {
		log.Warn("verifier_bad_response", "http_status", resp.StatusCode(), "error", err)
		return domain.Rejected(domain.ReasonBadResponse)
	}
	log.Info("verifier_result", "status", v.Status, "reason", v.Reason, "reference_id", v.ReferenceID)
	return v
}

// wireVerdict tolerates amounts sent either as numbers or strings.
type wireVerdict struct {
	Status         string          `json:"status"`
	ReferenceID    string          `json:"reference_id"`
	ApprovedAmount json.RawMessage `json:"approved_amount"`
	Reason         string          `json:"reason"`
	Message        string          `json:"message"`
}

// decodeVerdict parses a backend body. Non-JSON bodies are errors; unknown
// statuses normalise to bad_response.
func decodeVerdict(body []byte) (domain.Verdict, error) {
	var w wireVerdict
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	v := domain.Verdict{
		Status:      strings.ToLower(strings.TrimSpace(w.Status)),
		ReferenceID: w.ReferenceID,
		Reason:      w.Reason,
		Message:     w.Message,
	}
	if len(w.ApprovedAmount) > 0 && string(w.ApprovedAmount) != "null" {
		raw := string(w.ApprovedAmount)
		if s, err := strconv.Unquote(raw); err == nil {
			raw = s
		}
		if f, err := amount.Parse(raw); err == nil {
			v.ApprovedAmount = f
		}
	}
	return domain.NormalizeVerdict(v), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// buildMultipart renders the slip_image/order/session_token form so the exact
// bytes can be signed before sending.
func buildMultipart(in Input) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="slip_image"; filename="%s"`, quoteEscaper.Replace(in.Filename)))
	h.Set("Content-Type", in.MIME)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(in.Slip); err != nil {
		return nil, "", err
	}

	order, err := json.Marshal(struct {
		ID       string  `json:"id"`
		Total    float64 `json:"total"`
		Currency string  `json:"currency"`
	}{in.OrderID, amount.Round(in.OrderTotal), in.Currency})
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("order", string(order)); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("session_token", in.SessionToken); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
