// Package nonce issues and checks time-boxed anti-forgery tokens bound to an
// action and a subject (browser session or admin user).
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Tick is the lifetime of one nonce window. A nonce stays valid for the
// window it was issued in and the one after.
const Tick = 12 * time.Hour

// Well-known actions.
const (
	ActionPublic = "rest"
	ActionAdmin  = "admin_action"
)

// Issuer mints and verifies nonces with a server secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer returns an Issuer. now may be nil to use time.Now.
func NewIssuer(secret string, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), now: now}
}

// Create returns the nonce for action and subject in the current window.
func (i *Issuer) Create(action, subject string) string {
	return i.at(action, subject, i.tick())
}

// Verify reports whether n was issued for action and subject in the current
// or previous window.
func (i *Issuer) Verify(n, action, subject string) bool {
	if n == "" {
		return false
	}
	t := i.tick()
	for _, tick := range []int64{t, t - 1} {
		if hmac.Equal([]byte(n), []byte(i.at(action, subject, tick))) {
			return true
		}
	}
	return false
}

func (i *Issuer) tick() int64 {
	return i.now().Unix() / int64(Tick/time.Second)
}

func (i *Issuer) at(action, subject string, tick int64) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(action + "|" + subject + "|" + strconv.FormatInt(tick, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:20]
}
