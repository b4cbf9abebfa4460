// Package memstore is a process-local store.Store and store.Counter with
// per-entry expiry. It stands in for the shared cache table in tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/scanpay-verify/internal/pkg/store"
)

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

type entry struct {
	data    []byte
	count   int64
	expires time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty Store. now may be nil to use time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{entries: make(map[string]entry), now: now}
}

// live returns the entry under key, evicting it if expired. Caller holds mu.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) Get(_ context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	e, ok := s.live(key)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("memstore decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("memstore encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.entries[key] = entry{data: data, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		e = entry{expires: s.now().Add(window)}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

// Sweep drops every expired entry.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		s.live(k)
	}
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
