package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestMemoryCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryCache()
	m.now = clock.Now
	return m, clock
}

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemoryCache()

	require.NoError(t, m.Set(ctx, "svc", []byte("<edmx/>"), time.Minute))
	value, err := m.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, []byte("<edmx/>"), value)

	// mutating the returned slice must not touch the cache
	value[0] = 'X'
	again, err := m.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, []byte("<edmx/>"), again)

	_, err = m.Get(ctx, "other")
	assert.True(t, IsCacheMiss(err))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryCache()

	require.NoError(t, m.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, m.Set(ctx, "default", []byte("b"), 0))
	require.NoError(t, m.Set(ctx, "forever", []byte("c"), -1))

	clock.now = clock.now.Add(2 * time.Second)
	ok, err := m.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = m.Exists(ctx, "default")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.now = clock.now.Add(time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	value, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), value)
}

func TestMemoryCacheDeleteClear(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemoryCache()
	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, m.Delete(ctx, "a"))
	ok, _ := m.Exists(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryCacheCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, _ := newTestMemoryCache()
	assert.ErrorIs(t, m.Set(ctx, "a", nil, 0), context.Canceled)
	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
