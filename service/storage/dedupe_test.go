package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniRedisDedupe(t *testing.T) (DedupeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisDedupe(rdb, ""), mr
}

func TestRedisDedupeSeenOnce(t *testing.T) {
	d, _ := newMiniRedisDedupe(t)
	ctx := context.Background()

	seen, err := d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, seen)

	// 不同 key 互不影响
	seen, err = d.SeenOnce(ctx, "msg-2", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)
}

func TestRedisDedupeExpires(t *testing.T) {
	d, mr := newMiniRedisDedupe(t)
	ctx := context.Background()

	seen, err := d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)

	mr.FastForward(2 * time.Minute)

	seen, err = d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen) // 过期后又算新的
}

func TestRedisDedupeKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	d := NewRedisDedupe(rdb, "custom:")

	_, err := d.SeenOnce(context.Background(), "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists("custom:msg-1"))
}

func TestMemDedupeSeenOnce(t *testing.T) {
	d := NewMemDedupe()
	ctx := context.Background()

	seen, err := d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = d.SeenOnce(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = d.SeenOnce(ctx, "msg-2", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)
}
