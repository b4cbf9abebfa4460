package store

import (
	"context"
	"fmt"
	"time"

	"github.com/scanpay-verify/internal/pkg/logging"
)

// Tiered composes a primary store scoped to the browser session with a
// durable secondary keyed by token alone. Both may be the same shared store;
// primary keys carry the session id prefix. The primary is skipped when ctx
// carries no session id.
type Tiered struct {
	primary Store
	durable Store
}

// NewTiered returns a Tiered store. primary may be nil.
func NewTiered(primary, durable Store) *Tiered {
	return &Tiered{primary: primary, durable: durable}
}

func (t *Tiered) scoped(ctx context.Context, key string) (string, bool) {
	sid := SessionID(ctx)
	if t.primary == nil || sid == "" {
		return "", false
	}
	return sid + ":" + key, true
}

// Get reads the primary first, then the durable store. A durable hit is
// written back into the primary with ttl so later reads stay consistent.
func (t *Tiered) Get(ctx context.Context, key string, dst any, ttl time.Duration) (bool, error) {
	pk, ok := t.scoped(ctx, key)
	if ok {
		found, err := t.primary.Get(ctx, pk, dst)
		if err != nil {
			logging.FromContext(ctx).Warn("primary store read failed", "key", key, "error", err)
		}
		if found {
			return true, nil
		}
	}
	found, err := t.durable.Get(ctx, key, dst)
	if err != nil || !found {
		return false, err
	}
	if ok {
		if err := t.primary.Set(ctx, pk, dst, ttl); err != nil {
			logging.FromContext(ctx).Warn("primary store rehydrate failed", "key", key, "error", err)
		}
	}
	return true, nil
}

// GetPrimary reads only the session-scoped store.
func (t *Tiered) GetPrimary(ctx context.Context, key string, dst any) (bool, error) {
	pk, ok := t.scoped(ctx, key)
	if !ok {
		return false, nil
	}
	return t.primary.Get(ctx, pk, dst)
}

// Set writes the durable store first, then the primary. The call returns
// only after the durable write completed.
func (t *Tiered) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	if err := t.durable.Set(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("durable set: %w", err)
	}
	return t.SetPrimary(ctx, key, val, ttl)
}

// SetPrimary writes only the session-scoped store.
func (t *Tiered) SetPrimary(ctx context.Context, key string, val any, ttl time.Duration) error {
	pk, ok := t.scoped(ctx, key)
	if !ok {
		return nil
	}
	if err := t.primary.Set(ctx, pk, val, ttl); err != nil {
		return fmt.Errorf("primary set: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.durable.Delete(ctx, key); err != nil {
		return fmt.Errorf("durable delete: %w", err)
	}
	return t.DeletePrimary(ctx, key)
}

// DeletePrimary removes key from the session-scoped store only.
func (t *Tiered) DeletePrimary(ctx context.Context, key string) error {
	pk, ok := t.scoped(ctx, key)
	if !ok {
		return nil
	}
	return t.primary.Delete(ctx, pk)
}

// Durable exposes the secondary tier.
func (t *Tiered) Durable() Store { return t.durable }
