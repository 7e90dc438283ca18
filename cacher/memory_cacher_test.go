package cacher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCacher() *MemoryCacher[string] {
	return NewMemoryCacher[string](cache.NoExpiration, time.Minute).(*MemoryCacher[string])
}

func TestNewMemoryCacher(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, 10*time.Minute)
	require.NotNil(t, c)

	mc, ok := c.(*MemoryCacher[string])
	require.True(t, ok)
	require.NotNil(t, mc.cache)
}

func TestMemoryCacher_GetOrFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("miss calls fetch", func(t *testing.T) {
		c := newTestMemoryCacher()
		calls := 0

		val, err := c.GetOrFetch(ctx, "localhost", time.Minute, func(ctx context.Context) (string, error) {
			calls++
			return "127.0.0.1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", val)
		assert.Equal(t, 1, calls)
	})

	t.Run("hit skips fetch", func(t *testing.T) {
		c := newTestMemoryCacher()
		calls := 0
		fetch := func(ctx context.Context) (string, error) {
			calls++
			return "10.0.0.1", nil
		}

		_, err := c.GetOrFetch(ctx, "db", time.Minute, fetch)
		require.NoError(t, err)

		val, err := c.GetOrFetch(ctx, "db", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1", val)
		assert.Equal(t, 1, calls)
	})

	t.Run("fetch errors are not cached", func(t *testing.T) {
		c := newTestMemoryCacher()

		val, err := c.GetOrFetch(ctx, "bad", time.Minute, func(ctx context.Context) (string, error) {
			return "", assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, val)

		val, err = c.GetOrFetch(ctx, "bad", time.Minute, func(ctx context.Context) (string, error) {
			return "10.0.0.2", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.2", val)
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		c := newTestMemoryCacher()
		calls := 0
		fetch := func(ctx context.Context) (string, error) {
			calls++
			return "10.0.0.3", nil
		}

		_, err := c.GetOrFetch(ctx, "short", 20*time.Millisecond, fetch)
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)

		_, err = c.GetOrFetch(ctx, "short", 20*time.Millisecond, fetch)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestMemoryCacher_GetOrFetch_ConcurrentSameKey(t *testing.T) {
	c := newTestMemoryCacher()
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "192.168.1.1", nil
	}

	const concurrency = 10
	var wg sync.WaitGroup
	results := make([]string, concurrency)
	errs := make([]error, concurrency)

	for i := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(ctx, "same-host", time.Minute, fetch)
		}()
	}
	wg.Wait()

	for i := range concurrency {
		require.NoError(t, errs[i])
		assert.Equal(t, "192.168.1.1", results[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMemoryCacher_DeleteClearCount(t *testing.T) {
	c := newTestMemoryCacher()
	ctx := context.Background()
	fetch := func(ctx context.Context) (string, error) { return "v", nil }

	_, _ = c.GetOrFetch(ctx, "a", time.Minute, fetch)
	_, _ = c.GetOrFetch(ctx, "b", time.Minute, fetch)

	count, err := c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "missing"))
	count, err = c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, c.Clear(ctx))
	count, err = c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryCacher_ContextCancelled(t *testing.T) {
	c := newTestMemoryCacher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Delete(ctx, "k"), context.Canceled)
	assert.ErrorIs(t, c.Clear(ctx), context.Canceled)

	count, err := c.ItemCount(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, count)
}

func TestMemoryCacher_Interface(t *testing.T) {
	var _ Cacher[string] = (*MemoryCacher[string])(nil)
}
