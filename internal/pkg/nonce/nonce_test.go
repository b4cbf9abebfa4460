package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestIssuer_RoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss := NewIssuer("secret", fixedClock(&now))

	n := iss.Create(ActionPublic, "sid-1")
	assert.Len(t, n, 20)
	assert.True(t, iss.Verify(n, ActionPublic, "sid-1"))
}

func TestIssuer_BoundToActionAndSubject(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss := NewIssuer("secret", fixedClock(&now))

	n := iss.Create(ActionPublic, "sid-1")
	assert.False(t, iss.Verify(n, ActionAdmin, "sid-1"))
	assert.False(t, iss.Verify(n, ActionPublic, "sid-2"))
	assert.False(t, NewIssuer("other", fixedClock(&now)).Verify(n, ActionPublic, "sid-1"))
	assert.False(t, iss.Verify("", ActionPublic, "sid-1"))
}

func TestIssuer_AcceptsPreviousWindowOnly(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss := NewIssuer("secret", fixedClock(&now))
	n := iss.Create(ActionAdmin, "user-1")

	now = now.Add(Tick)
	assert.True(t, iss.Verify(n, ActionAdmin, "user-1"))

	now = now.Add(Tick)
	assert.False(t, iss.Verify(n, ActionAdmin, "user-1"))
}
