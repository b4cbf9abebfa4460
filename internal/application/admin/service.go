// Package admin implements the manual payment overrides available to store
// staff: approve, reject, re-verify and backend diagnostics.
package admin

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/infrastructure/sns"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/pkg/id"
	"github.com/scanpay-verify/internal/pkg/logging"
)

type OrderStore interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	UpdatePayment(ctx context.Context, orderID, status string, meta domain.PaymentMeta) error
	AppendNote(ctx context.Context, orderID string, note domain.OrderNote) error
}

// SlipReader loads a stored slip by attachment reference.
type SlipReader interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Backend is the configured verification backend.
type Backend interface {
	Verify(ctx context.Context, in verifier.Input) domain.Verdict
	Ping(ctx context.Context) verifier.PingResult
}

type Service interface {
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	Approve(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	Reject(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error)
	Reverify(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, domain.Verdict, error)
	PingBackend(ctx context.Context, actor domain.Actor) (verifier.PingResult, error)
	// Slip returns the stored slip image of an order.
	Slip(ctx context.Context, actor domain.Actor, orderID string) ([]byte, string, error)
}

type service struct {
	orders    OrderStore
	slips     SlipReader
	backend   Backend
	publisher sns.EventPublisher
	now       func() time.Time
}

func NewService(orders OrderStore, slips SlipReader, backend Backend, publisher sns.EventPublisher) Service {
	return &service{orders: orders, slips: slips, backend: backend, publisher: publisher, now: time.Now}
}

// Authorize requires both capabilities. Each one is checked on its own.
func Authorize(actor domain.Actor) error {
	if !actor.Can(domain.CapManageStore) {
		return fmt.Errorf("missing %s: %w", domain.CapManageStore, domain.ErrPermissionDenied)
	}
	if !actor.Can(domain.CapManagePayments) {
		return fmt.Errorf("missing %s: %w", domain.CapManagePayments, domain.ErrPermissionDenied)
	}
	return nil
}

func (s *service) load(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if err := Authorize(actor); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, orderID)
}

func (s *service) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	return s.load(ctx, actor, orderID)
}

func (s *service) Approve(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	cid := logging.CorrelationID(ctx)
	o.Payment.Status = domain.StatusApproved
	o.Payment.Reason = ""
	o.Payment.LastCheckedAt = s.now().UTC()
	o.Status = domain.OrderPaid

	msg := fmt.Sprintf("Payment manually approved by %s (User ID: %s). Correlation ID: %s", actor.Name, actor.UserID, cid)
	if err := s.apply(ctx, actor, o, msg); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("Payment manually approved", "order_id", orderID, "user_id", actor.UserID)
	s.publish(ctx, "admin.approved", actor, o)
	return o, nil
}

func (s *service) Reject(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = domain.ReasonManual
	}
	cid := logging.CorrelationID(ctx)
	o.Payment.Status = domain.StatusRejected
	o.Payment.Reason = reason
	o.Payment.LastCheckedAt = s.now().UTC()
	o.Status = domain.OrderOnHold

	msg := fmt.Sprintf("Payment manually rejected by %s (User ID: %s). Reason: %s. Correlation ID: %s", actor.Name, actor.UserID, reason, cid)
	if err := s.apply(ctx, actor, o, msg); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("Payment manually rejected", "order_id", orderID, "user_id", actor.UserID, "reason", reason)
	s.publish(ctx, "admin.rejected", actor, o)
	return o, nil
}

// Reverify sends the stored slip through the backend again and records the verdict.
func (s *service) Reverify(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, domain.Verdict, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, domain.Verdict{}, err
	}
	ref := o.Payment.AttachmentRef
	if ref == "" {
		return nil, domain.Verdict{}, fmt.Errorf("order %s has no slip: %w", orderID, domain.ErrUploadMissing)
	}
	data, ct, err := s.slips.Download(ctx, ref)
	if err != nil {
		return nil, domain.Verdict{}, fmt.Errorf("load slip: %w", err)
	}

	v := s.backend.Verify(ctx, verifier.Input{
		Slip:         data,
		Filename:     path.Base(ref),
		MIME:         ct,
		OrderID:      o.OrderID,
		OrderTotal:   o.Total,
		Currency:     o.Currency,
		SessionToken: "reverify-" + o.OrderID,
	})

	o.Payment.Status = v.Status
	o.Payment.Reason = v.Reason
	o.Payment.LastCheckedAt = s.now().UTC()
	if v.Approved() {
		o.Payment.ReferenceID = v.ReferenceID
		o.Payment.ApprovedAmount = v.ApprovedAmount
		o.Status = domain.OrderPaid
	}

	cid := logging.CorrelationID(ctx)
	msg := fmt.Sprintf("Payment re-verified by %s (User ID: %s). Result: %s. Correlation ID: %s", actor.Name, actor.UserID, v.Status, cid)
	if err := s.apply(ctx, actor, o, msg); err != nil {
		return nil, domain.Verdict{}, err
	}
	logging.FromContext(ctx).Info("Payment re-verified", "order_id", orderID, "user_id", actor.UserID, "status", v.Status, "reason", v.Reason)
	s.publish(ctx, "admin.reverified", actor, o)
	return o, v, nil
}

func (s *service) PingBackend(ctx context.Context, actor domain.Actor) (verifier.PingResult, error) {
	if err := Authorize(actor); err != nil {
		return verifier.PingResult{}, err
	}
	res := s.backend.Ping(ctx)
	logging.FromContext(ctx).Info("backend_ping", "user_id", actor.UserID, "success", res.OK, "error_type", res.Classification)
	return res, nil
}

func (s *service) Slip(ctx context.Context, actor domain.Actor, orderID string) ([]byte, string, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, "", err
	}
	if o.Payment.AttachmentRef == "" {
		return nil, "", fmt.Errorf("order %s has no slip: %w", orderID, domain.ErrUploadMissing)
	}
	data, ct, err := s.slips.Download(ctx, o.Payment.AttachmentRef)
	if err != nil {
		return nil, "", fmt.Errorf("load slip: %w", err)
	}
	return data, ct, nil
}

// apply persists the order's payment metadata and appends the audit note.
func (s *service) apply(ctx context.Context, actor domain.Actor, o *domain.Order, msg string) error {
	if err := s.orders.UpdatePayment(ctx, o.OrderID, o.Status, o.Payment); err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	note := domain.OrderNote{
		NoteID:        id.New(),
		Message:       msg,
		CorrelationID: logging.CorrelationID(ctx),
		ActorID:       actor.UserID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.orders.AppendNote(ctx, o.OrderID, note); err != nil {
		return fmt.Errorf("append order note: %w", err)
	}
	o.Notes = append(o.Notes, note)
	return nil
}

func (s *service) publish(ctx context.Context, typ string, actor domain.Actor, o *domain.Order) {
	s.publisher.Publish(ctx, domain.PaymentEvent{
		Type:           typ,
		OrderID:        o.OrderID,
		Status:         o.Payment.Status,
		ReferenceID:    o.Payment.ReferenceID,
		ApprovedAmount: o.Payment.ApprovedAmount,
		Reason:         o.Payment.Reason,
		ActorID:        actor.UserID,
		CorrelationID:  logging.CorrelationID(ctx),
	})
}
