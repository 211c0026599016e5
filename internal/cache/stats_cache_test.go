package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*StatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStatsCache(rdb, "test:stats", 30*time.Second), mr
}

func TestStatsCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, gen, ok, err := c.Get(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "all", gen, []byte(`{"total":3}`)))
	raw, _, ok, err := c.Get(ctx, "all")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":3}`, string(raw))
}

func TestStatsCache_InvalidateDropsEveryScope(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "all", 0, []byte("a")))
	require.NoError(t, c.Set(ctx, "store:1", 0, []byte("b")))
	require.NoError(t, c.Invalidate(ctx))

	var gen int64
	for _, key := range []string{"all", "store:1"} {
		_, g, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
		gen = g
	}
	assert.Equal(t, int64(1), gen)

	require.NoError(t, c.Set(ctx, "all", gen, []byte("c")))
	raw, _, ok, err := c.Get(ctx, "all")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c", string(raw))
}

func TestStatsCache_SetAfterInvalidateStaysUnreachable(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, gen, ok, err := c.Get(ctx, "all")
	require.NoError(t, err)
	require.False(t, ok)

	// A transition commits while the caller is still aggregating.
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, "all", gen, []byte("stale")))

	_, _, ok, err = c.Get(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok, "value built before the invalidation must not be served")
}

func TestStatsCache_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "all", 0, []byte("a")))
	assert.Equal(t, 30*time.Second, mr.TTL("test:stats:0:all"))

	mr.FastForward(31 * time.Second)
	_, _, ok, err := c.Get(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatsCache_ReportsServerErrors(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	mr.Close()

	_, _, _, err := c.Get(ctx, "all")
	assert.Error(t, err)
	assert.Error(t, c.Invalidate(ctx))
}
