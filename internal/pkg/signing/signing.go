// Package signing builds and checks the HMAC envelope shared with the
// verification backends: HMAC-SHA256 over "<unix timestamp>\n<sha256 hex of body>".
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Header names carried by every signed call.
const (
	HeaderTimestamp   = "X-PromptPay-Timestamp"
	HeaderSignature   = "X-PromptPay-Signature"
	HeaderVersion     = "X-PromptPay-Version"
	HeaderCorrelation = "X-Correlation-ID"
	HeaderIdempotency = "X-Idempotency-Key"

	Version = "1.0"
)

var (
	ErrBadSignature   = errors.New("bad signature")
	ErrStaleTimestamp = errors.New("old timestamp")
)

// CanonicalString returns the string that gets signed.
func CanonicalString(timestamp int64, body []byte) string {
	return strconv.FormatInt(timestamp, 10) + "\n" + SHA256Hex(body)
}

// Sign returns the hex HMAC-SHA256 of the canonical string keyed by secret.
func Sign(timestamp int64, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an inbound signature. A mismatch and a timestamp outside
// maxSkew of now are reported as distinct errors; skew is checked first.
func Verify(timestamp int64, body []byte, signature, secret string, now time.Time, maxSkew time.Duration) error {
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrStaleTimestamp
	}
	expected := Sign(timestamp, body, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// VerifyRequest reads the timestamp and signature headers from h and verifies body.
func VerifyRequest(h http.Header, body []byte, secret string, now time.Time, maxSkew time.Duration) error {
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	return Verify(ts, body, h.Get(HeaderSignature), secret, now, maxSkew)
}

// IdempotencyKey is sha256(session_token|order_id) in hex.
func IdempotencyKey(sessionToken, orderID string) string {
	return SHA256Hex([]byte(sessionToken + "|" + orderID))
}

// Headers returns the full signed header set for body.
func Headers(timestamp int64, body []byte, secret, correlationID, idempotencyKey string) map[string]string {
	h := map[string]string{
		HeaderTimestamp:   strconv.FormatInt(timestamp, 10),
		HeaderSignature:   Sign(timestamp, body, secret),
		HeaderVersion:     Version,
		HeaderCorrelation: correlationID,
	}
	if idempotencyKey != "" {
		h[HeaderIdempotency] = idempotencyKey
	}
	return h
}

func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
