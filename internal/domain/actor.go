package domain

// Capabilities an admin actor must hold, both of them, to override a payment.
const (
	CapManageStore    = "manage_store"
	CapManagePayments = "scanpay_manage"
)

// Actor is the authenticated user performing an admin action.
type Actor struct {
	UserID       string
	Name         string
	Capabilities []string
}

func (a Actor) Can(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// PaymentEvent is published to the notification topic.
type PaymentEvent struct {
	Type           string  `json:"type"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	ReferenceID    string  `json:"reference_id,omitempty"`
	ApprovedAmount float64 `json:"approved_amount,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	ActorID        string  `json:"actor_id,omitempty"`
	CorrelationID  string  `json:"correlation_id"`
}
