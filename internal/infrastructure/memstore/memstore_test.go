package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Approved bool   `json:"approved"`
	Ref      string `json:"ref"`
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	require.NoError(t, s.Set(ctx, "k", sample{Approved: true, Ref: "R1"}, time.Minute))

	var got sample
	found, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sample{Approved: true, Ref: "R1"}, got)

	require.NoError(t, s.Delete(ctx, "k"))
	found, err = s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := New(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", sample{Ref: "x"}, 10*time.Second))
	now = now.Add(10 * time.Second)

	var got sample
	found, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())
}

func TestStore_IncrFixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := New(func() time.Time { return now })

	for i := int64(1); i <= 6; i++ {
		n, err := s.Incr(ctx, "ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	now = now.Add(time.Minute)
	n, err := s.Incr(ctx, "ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := New(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "short", 1, time.Second))
	require.NoError(t, s.Set(ctx, "long", 2, time.Hour))
	now = now.Add(time.Minute)
	s.Sweep()
	assert.Equal(t, 1, s.Len())
}
