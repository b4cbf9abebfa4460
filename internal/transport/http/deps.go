package http

import (
	"context"
	"time"

	"github.com/scanpay-verify/internal/application/qr"
	"github.com/scanpay-verify/internal/domain"
	jwtinfra "github.com/scanpay-verify/internal/infrastructure/jwt"
	"github.com/scanpay-verify/internal/infrastructure/sns"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/pkg/nonce"
	"github.com/scanpay-verify/internal/pkg/store"
)

// SessionStore is the tiered store (browser-session scoped primary over the
// durable cache) shared by the verification state machine and the QR cache.
type SessionStore interface {
	Get(ctx context.Context, key string, dst any, ttl time.Duration) (bool, error)
	GetPrimary(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	SetPrimary(ctx context.Context, key string, val any, ttl time.Duration) error
	DeletePrimary(ctx context.Context, key string) error
	Durable() store.Store
}

// OrderRepository is the minimal interface the router requires from an order store.
type OrderRepository interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	CreateFromApproval(ctx context.Context, o *domain.Order, approvalKey string) error
	UpdatePayment(ctx context.Context, orderID, status string, meta domain.PaymentMeta) error
	AppendNote(ctx context.Context, orderID string, note domain.OrderNote) error
}

// SlipRepository is the minimal interface the router requires from slip storage.
type SlipRepository interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Sessions    SessionStore
	Counter     store.Counter
	Orders      OrderRepository
	Slips       SlipRepository
	Verifier    verifier.Verifier
	QRGen       qr.Generator
	Publisher   sns.EventPublisher
	Nonces      *nonce.Issuer
	JWTProvider *jwtinfra.Provider
}
