package domain

import "time"

const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderOnHold  = "on-hold"
)

// Order mirrors the commerce platform's order with the payment metadata this service owns.
type Order struct {
	OrderID   string      `json:"id" dynamodbav:"order_id"`
	Status    string      `json:"status" dynamodbav:"status"`
	Total     float64     `json:"total" dynamodbav:"total"`
	Currency  string      `json:"currency" dynamodbav:"currency"`
	Payment   PaymentMeta `json:"payment" dynamodbav:"payment"`
	Notes     []OrderNote `json:"notes" dynamodbav:"notes,omitempty"`
	CreatedAt time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time   `json:"updated" dynamodbav:"updated_at"`
}

// PaymentMeta holds the verdict copied onto an order.
type PaymentMeta struct {
	Status         string    `json:"status" dynamodbav:"status"`
	ReferenceID    string    `json:"reference_id" dynamodbav:"reference_id"`
	ApprovedAmount float64   `json:"approved_amount" dynamodbav:"approved_amount"`
	Reason         string    `json:"reason,omitempty" dynamodbav:"reason"`
	AttachmentRef  string    `json:"attachment_ref,omitempty" dynamodbav:"attachment_ref"`
	LastCheckedAt  time.Time `json:"last_checked_at" dynamodbav:"last_checked_at"`
}

// OrderNote is an append-only audit entry.
type OrderNote struct {
	NoteID        string    `json:"id" dynamodbav:"note_id"`
	Message       string    `json:"message" dynamodbav:"message"`
	CorrelationID string    `json:"correlation_id" dynamodbav:"correlation_id"`
	ActorID       string    `json:"actor_id,omitempty" dynamodbav:"actor_id"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
}
