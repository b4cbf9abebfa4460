// Package qr issues reference codes and caches PromptPay QR quotes per
// session token.
package qr

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"time"

	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/infrastructure/qrgen"
	"github.com/scanpay-verify/internal/pkg/amount"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/scanpay-verify/internal/pkg/store"
)

const (
	// ReferenceTTL is how long a reference code stays bound to its session.
	ReferenceTTL = 10 * time.Minute
	// safetyMargin is the minimum remaining lifetime of a quote that is served from cache.
	safetyMargin = 2 * time.Second
	minQuoteTTL  = 5 * time.Second

	refMin = 1_000_000
	refMax = 99_999_999
)

// SessionStore is the tiered store. Reference codes live in both tiers,
// quotes only in the durable one.
type SessionStore interface {
	Get(ctx context.Context, key string, dst any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Durable() store.Store
}

// Generator is the dynamic QR backend.
type Generator interface {
	Enabled() bool
	Generate(ctx context.Context, req qrgen.Request) (*qrgen.Response, error)
}

type QuoteRequest struct {
	SessionToken string  `validate:"required,min=16,max=128"`
	OrderID      string  `validate:"max=64"`
	Amount       float64 `validate:"gte=0"`
	Currency     string
}

type Service interface {
	// Reference returns the session's reference code, minting one if none is live.
	Reference(ctx context.Context, sessionToken string) (string, error)
	// Quote returns a cached quote with more than two seconds left, or a fresh one.
	Quote(ctx context.Context, req QuoteRequest) (*domain.QRQuote, error)
}

type Config struct {
	Currency      string
	DefaultExpiry time.Duration
}

type service struct {
	cfg   Config
	store SessionStore
	gen   Generator
	now   func() time.Time
}

func NewService(cfg Config, sessions SessionStore, gen Generator) Service {
	return &service{cfg: cfg, store: sessions, gen: gen, now: time.Now}
}

func referenceKey(sessionToken string) string {
	return "ref_" + signing.SHA256Hex([]byte(sessionToken))
}

// QuoteKey is the cache key of one (session, amount, currency) triple.
func QuoteKey(sessionToken string, amt float64, currency string) string {
	return "qr_" + signing.SHA256Hex([]byte(sessionToken+"|"+amount.Format(amt)+"|"+currency))
}

// newReferenceCode draws uniformly from [refMin, refMax].
func newReferenceCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(refMax-refMin+1))
	if err != nil {
		return strconv.Itoa(refMin + mrand.IntN(refMax-refMin+1))
	}
	return strconv.FormatInt(n.Int64()+refMin, 10)
}

func (s *service) Reference(ctx context.Context, sessionToken string) (string, error) {
	key := referenceKey(sessionToken)
	now := s.now()

	var ref domain.ReferenceCode
	found, err := s.store.Get(ctx, key, &ref, ReferenceTTL)
	if err != nil {
		logging.FromContext(ctx).Warn("reference lookup failed", "error", err)
	}
	// Rehydration refreshes the store TTL, so the age is checked here.
	if found && ref.Code != "" && now.Sub(time.Unix(ref.CreatedAt, 0)) < ReferenceTTL {
		return ref.Code, nil
	}

	ref = domain.ReferenceCode{Code: newReferenceCode(), CreatedAt: now.Unix()}
	if err := s.store.Set(ctx, key, ref, ReferenceTTL); err != nil {
		return "", fmt.Errorf("store reference code: %w", err)
	}
	return ref.Code, nil
}

func (s *service) Quote(ctx context.Context, req QuoteRequest) (*domain.QRQuote, error) {
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	amt := amount.Round(req.Amount)
	log := logging.FromContext(ctx).With(logging.KeySessionToken, req.SessionToken, "order_id", req.OrderID)

	ref, err := s.Reference(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}

	key := QuoteKey(req.SessionToken, amt, currency)
	durable := s.store.Durable()
	now := s.now()

	var cached domain.QRQuote
	found, err := durable.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("quote cache read failed", "error", err)
	}
	if found && time.Unix(cached.ExpiresEpoch, 0).Sub(now) > safetyMargin {
		cached.RefCode = ref
		log.Info("qr_proxy_cache_hit", "expires_epoch", cached.ExpiresEpoch)
		return &cached, nil
	}

	q := domain.QRQuote{
		OrderID:      req.OrderID,
		Amount:       amt,
		Currency:     currency,
		SessionToken: req.SessionToken,
		RefCode:      ref,
		CachedAt:     now.Unix(),
	}

	if s.gen == nil || !s.gen.Enabled() {
		q.ExpiresEpoch = now.Add(s.cfg.DefaultExpiry).Unix()
		ttl := max(minQuoteTTL, s.cfg.DefaultExpiry-safetyMargin)
		if err := durable.Set(ctx, key, q, ttl); err != nil {
			log.Warn("quote cache write failed", "error", err)
		}
		log.Info("qr_proxy_static", "expires_epoch", q.ExpiresEpoch)
		return &q, nil
	}

	resp, err := s.gen.Generate(ctx, qrgen.Request{
		OrderID:      req.OrderID,
		Amount:       amt,
		Currency:     currency,
		SessionToken: req.SessionToken,
		RefCode:      ref,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quote: %w", err)
	}

	q.EMVPayload = resp.EMV
	q.QRImageURL = resp.QRURL
	q.ExpiresEpoch = resp.ExpiresEpoch
	if q.ExpiresEpoch == 0 {
		q.ExpiresEpoch = now.Add(s.cfg.DefaultExpiry).Unix()
	}
	if resp.RefCode != "" {
		q.RefCode = resp.RefCode
	}

	ttl := max(minQuoteTTL, time.Unix(q.ExpiresEpoch, 0).Sub(now)-safetyMargin)
	if err := durable.Set(ctx, key, q, ttl); err != nil {
		log.Warn("quote cache write failed", "error", err)
	}
	log.Info("qr_proxy_generated", "expires_epoch", q.ExpiresEpoch)
	return &q, nil
}
