package domain

// QRQuote is a cached QR payload for one (session, amount, currency) triple.
// EMVPayload and QRImageURL are nil for the static fallback quote.
type QRQuote struct {
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	SessionToken string  `json:"session_token"`
	EMVPayload   *string `json:"emv"`
	QRImageURL   *string `json:"qr_url"`
	ExpiresEpoch int64   `json:"expires_epoch"`
	RefCode      string  `json:"ref_code"`
	CachedAt     int64   `json:"cached_at,omitempty"`
}

// ReferenceCode is the numeric display code bound to a session token.
type ReferenceCode struct {
	Code      string `json:"code"`
	CreatedAt int64  `json:"created_at"`
}
