// Package store defines the key-value contract shared by the ephemeral
// per-browser-session store and the durable TTL'd cache, and the tiered
// composition of the two.
package store

import (
	"context"
	"time"
)

// Store is a TTL'd key-value store. Values are JSON-encoded by implementations.
type Store interface {
	// Get decodes the value under key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Counter is a fixed-window counter keyed by an arbitrary string.
type Counter interface {
	// Incr adds one to the counter under key and returns the new count. A
	// counter that does not exist or whose window elapsed restarts at 1 with
	// a fresh window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type sessionKey struct{}

// WithSessionID attaches the browser session id to ctx.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sid)
}

// SessionID returns the browser session id carried by ctx, or "".
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}
