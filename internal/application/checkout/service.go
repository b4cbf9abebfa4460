package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/scanpay-verify/internal/application/session"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/infrastructure/sns"
	"github.com/scanpay-verify/internal/pkg/amount"
	"github.com/scanpay-verify/internal/pkg/id"
	"github.com/scanpay-verify/internal/pkg/logging"
)

// Gate resolves and clears approved verification sessions.
type Gate interface {
	Approval(ctx context.Context, sessionToken string) (*domain.VerificationSession, error)
	Clear(ctx context.Context, sessionToken string) error
}

// OrderCreator writes an order and consumes its approval atomically.
type OrderCreator interface {
	CreateFromApproval(ctx context.Context, o *domain.Order, approvalKey string) error
}

type PlaceOrderRequest struct {
	SessionToken string  `json:"session_token" validate:"required,min=16,max=128"`
	OrderTotal   float64 `json:"order_total" validate:"gte=0"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
}

type Service interface {
	Validate(ctx context.Context, sessionToken string) error
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)
}

type service struct {
	gate      Gate
	orders    OrderCreator
	publisher sns.EventPublisher
	currency  string
	now       func() time.Time
}

func NewService(gate Gate, orders OrderCreator, publisher sns.EventPublisher, currency string) Service {
	return &service{gate: gate, orders: orders, publisher: publisher, currency: currency, now: time.Now}
}

// Validate is the field-validation-time gate.
func (s *service) Validate(ctx context.Context, sessionToken string) error {
	if _, err := s.gate.Approval(ctx, sessionToken); err != nil {
		logging.FromContext(ctx).Info("checkout_blocked", logging.KeySessionToken, sessionToken, "stage", "validate")
		return err
	}
	return nil
}

// PlaceOrder checks approval again and creates a paid order carrying the verdict.
func (s *service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	log := logging.FromContext(ctx).With(logging.KeySessionToken, req.SessionToken)

	st, err := s.gate.Approval(ctx, req.SessionToken)
	if err != nil {
		log.Info("checkout_blocked", "stage", "process_payment")
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	now := s.now().UTC()
	o := &domain.Order{
		OrderID:  id.New(),
		Status:   domain.OrderPaid,
		Total:    amount.Round(req.OrderTotal),
		Currency: currency,
		Payment: domain.PaymentMeta{
			Status:         domain.StatusApproved,
			ReferenceID:    st.ReferenceID,
			ApprovedAmount: st.ApprovedAmount,
			AttachmentRef:  st.AttachmentRef,
			LastCheckedAt:  now,
		},
		Notes: []domain.OrderNote{{
			NoteID:        id.New(),
			Message:       fmt.Sprintf("Payment approved via Scan & Pay. Reference: %s, Amount: %.2f %s", st.ReferenceID, st.ApprovedAmount, currency),
			CorrelationID: logging.CorrelationID(ctx),
			CreatedAt:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateFromApproval(ctx, o, session.ApprovalKey(req.SessionToken)); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if err := s.gate.Clear(ctx, req.SessionToken); err != nil {
		log.Warn("session state not cleared", "order_id", o.OrderID, "error", err)
	}
	log.Info("checkout_order_created", "order_id", o.OrderID, "reference_id", st.ReferenceID)

	s.publisher.Publish(ctx, domain.PaymentEvent{
		Type:           "checkout.approved",
		OrderID:        o.OrderID,
		Status:         domain.StatusApproved,
		ReferenceID:    st.ReferenceID,
		ApprovedAmount: st.ApprovedAmount,
		CorrelationID:  logging.CorrelationID(ctx),
	})
	return o, nil
}
