// Package session is the verification session state machine: it records
// verdicts per session token across the ephemeral and durable stores and
// answers the checkout gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/pkg/id"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/scanpay-verify/internal/pkg/store"
)

// ApprovalKey is the durable cache key of a session token's state.
func ApprovalKey(sessionToken string) string {
	return "tok_" + signing.SHA256Hex([]byte(sessionToken))
}

// Slip is an uploaded slip image.
type Slip struct {
	Data     []byte
	Filename string
	Size     int64
}

type VerifyRequest struct {
	SessionToken string  `validate:"required,min=16,max=128"`
	OrderID      string  `validate:"max=64"`
	OrderTotal   float64 `validate:"gte=0"`
	Slip         Slip
}

// SessionStore is the tiered store holding VerificationSession values.
type SessionStore interface {
	GetPrimary(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	SetPrimary(ctx context.Context, key string, val any, ttl time.Duration) error
	DeletePrimary(ctx context.Context, key string) error
	Durable() store.Store
}

// SlipStore persists slip images and returns their attachment reference.
type SlipStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// SlipVerifier is the verification backend.
type SlipVerifier interface {
	Verify(ctx context.Context, in verifier.Input) domain.Verdict
}

// OrderStore is the minimal interface the state machine requires for orders that already exist.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	UpdatePayment(ctx context.Context, orderID, status string, meta domain.PaymentMeta) error
	AppendNote(ctx context.Context, orderID string, note domain.OrderNote) error
}

type Service interface {
	// VerifySlip validates and stores the slip, calls the backend and records
	// the verdict. The durable write completes before it returns.
	VerifySlip(ctx context.Context, req VerifyRequest) (domain.Verdict, error)
	// ApplyCallback records a verdict delivered asynchronously by the backend.
	ApplyCallback(ctx context.Context, sessionToken string, v domain.Verdict) error
	// Approval resolves an approved session or fails with ErrSessionExpired.
	Approval(ctx context.Context, sessionToken string) (*domain.VerificationSession, error)
	// Clear drops the ephemeral state once the order exists.
	Clear(ctx context.Context, sessionToken string) error
}

type Config struct {
	MaxFileSize int64
	Currency    string
	ApprovalTTL time.Duration
}

type service struct {
	cfg      Config
	store    SessionStore
	slips    SlipStore
	verifier SlipVerifier
	orders   OrderStore
	now      func() time.Time
}

func NewService(cfg Config, sessions SessionStore, slips SlipStore, v SlipVerifier, orders OrderStore) Service {
	return &service{cfg: cfg, store: sessions, slips: slips, verifier: v, orders: orders, now: time.Now}
}

// CheckSlip enforces presence, size and JPEG/PNG content. It returns the sniffed content type.
func CheckSlip(s Slip, maxSize int64) (string, error) {
	if len(s.Data) == 0 {
		return "", domain.ErrUploadMissing
	}
	size := max(s.Size, int64(len(s.Data)))
	if size > maxSize {
		return "", fmt.Errorf("slip is %d bytes: %w", size, domain.ErrUploadTooLarge)
	}
	ct := http.DetectContentType(s.Data)
	if ct != "image/jpeg" && ct != "image/png" {
		return "", fmt.Errorf("slip content %s: %w", ct, domain.ErrInvalidFileType)
	}
	return ct, nil
}

func (s *service) VerifySlip(ctx context.Context, req VerifyRequest) (domain.Verdict, error) {
	ct, err := CheckSlip(req.Slip, s.cfg.MaxFileSize)
	if err != nil {
		return domain.Verdict{}, err
	}
	log := logging.FromContext(ctx).With(logging.KeySessionToken, req.SessionToken, "order_id", req.OrderID)
	log.Info("verify_slip_request", "size", len(req.Slip.Data), "mime", ct)

	key := ApprovalKey(req.SessionToken)
	verifying := domain.VerificationSession{Phase: domain.PhaseVerifying, UpdatedAt: s.now().UTC()}
	if err := s.store.SetPrimary(ctx, key, verifying, s.cfg.ApprovalTTL); err != nil {
		log.Warn("verifying state not stored", "error", err)
	}

	// The backend call runs to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	ref, err := s.slips.Upload(ctx, req.Slip.Data, ct)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("store slip: %w", err)
	}
	log = log.With("attachment_ref", ref)

	v := s.verifier.Verify(ctx, verifier.Input{
		Slip:         req.Slip.Data,
		Filename:     req.Slip.Filename,
		MIME:         ct,
		OrderID:      req.OrderID,
		OrderTotal:   req.OrderTotal,
		Currency:     s.cfg.Currency,
		SessionToken: req.SessionToken,
	})
	log.Info("verify_slip_result", "status", v.Status, "reason", v.Reason)

	if req.OrderID != "" {
		if err := s.applyToOrder(ctx, req.OrderID, v, ref); err != nil {
			return domain.Verdict{}, err
		}
	}
	if err := s.record(ctx, req.SessionToken, v, ref); err != nil {
		return domain.Verdict{}, err
	}
	return v, nil
}

func (s *service) ApplyCallback(ctx context.Context, sessionToken string, v domain.Verdict) error {
	v = domain.NormalizeVerdict(v)
	logging.FromContext(ctx).Info("verify_slip_callback", logging.KeySessionToken, sessionToken, "status", v.Status, "reason", v.Reason)
	return s.record(ctx, sessionToken, v, "")
}

// record stores the latest verdict. Approvals are dual-written; a rejection
// replaces the ephemeral state and removes any durable approval.
func (s *service) record(ctx context.Context, sessionToken string, v domain.Verdict, attachmentRef string) error {
	key := ApprovalKey(sessionToken)
	st := domain.VerificationSession{
		AttachmentRef: attachmentRef,
		UpdatedAt:     s.now().UTC(),
	}
	if v.Approved() {
		st.Phase = domain.PhaseApproved
		st.Approved = true
		st.ReferenceID = v.ReferenceID
		st.ApprovedAmount = v.ApprovedAmount
		if err := s.store.Set(ctx, key, st, s.cfg.ApprovalTTL); err != nil {
			return fmt.Errorf("record approval: %w", err)
		}
		return nil
	}
	st.Phase = domain.PhaseRejected
	st.Reason = v.Reason
	if err := s.store.Durable().Delete(ctx, key); err != nil {
		return fmt.Errorf("drop stale approval: %w", err)
	}
	if err := s.store.SetPrimary(ctx, key, st, s.cfg.ApprovalTTL); err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

// applyToOrder copies the verdict onto an order that already exists. A
// missing order is the normal pre-checkout case and is ignored.
func (s *service) applyToOrder(ctx context.Context, orderID string, v domain.Verdict, attachmentRef string) error {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil
		}
		return fmt.Errorf("load order: %w", err)
	}
	meta := domain.PaymentMeta{
		Status:         v.Status,
		ReferenceID:    v.ReferenceID,
		ApprovedAmount: v.ApprovedAmount,
		Reason:         v.Reason,
		AttachmentRef:  attachmentRef,
		LastCheckedAt:  s.now().UTC(),
	}
	status, msg := "", fmt.Sprintf("Slip verification rejected. Reason: %s", v.Reason)
	if v.Approved() {
		status = domain.OrderPaid
		msg = fmt.Sprintf("Payment approved via Scan & Pay. Reference: %s, Amount: %.2f %s", v.ReferenceID, v.ApprovedAmount, s.cfg.Currency)
	}
	if err := s.orders.UpdatePayment(ctx, orderID, status, meta); err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	note := domain.OrderNote{
		NoteID:        id.New(),
		Message:       msg,
		CorrelationID: logging.CorrelationID(ctx),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.orders.AppendNote(ctx, orderID, note); err != nil {
		return fmt.Errorf("append order note: %w", err)
	}
	return nil
}

// Approval consults the primary store first, but the durable entry decides:
// every rejection deletes it, whichever worker or callback recorded it. A
// primary copy that disagrees with the durable entry is replaced or dropped.
func (s *service) Approval(ctx context.Context, sessionToken string) (*domain.VerificationSession, error) {
	if sessionToken == "" {
		return nil, domain.ErrSessionExpired
	}
	key := ApprovalKey(sessionToken)
	log := logging.FromContext(ctx).With(logging.KeySessionToken, sessionToken)

	var cur domain.VerificationSession
	inPrimary, err := s.store.GetPrimary(ctx, key, &cur)
	if err != nil {
		log.Warn("primary session read failed", "error", err)
		inPrimary = false
	}

	var st domain.VerificationSession
	found, err := s.store.Durable().Get(ctx, key, &st)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found || !st.Approved {
		if inPrimary && cur.Approved {
			log.Warn("stale approval dropped from primary store")
			if err := s.store.DeletePrimary(ctx, key); err != nil {
				log.Warn("stale approval not dropped", "error", err)
			}
		}
		return nil, domain.ErrSessionExpired
	}
	if !inPrimary || !cur.Approved || !cur.UpdatedAt.Equal(st.UpdatedAt) {
		if err := s.store.SetPrimary(ctx, key, st, s.cfg.ApprovalTTL); err != nil {
			log.Warn("primary session restore failed", "error", err)
		}
	}
	return &st, nil
}

func (s *service) Clear(ctx context.Context, sessionToken string) error {
	return s.store.DeletePrimary(ctx, ApprovalKey(sessionToken))
}
