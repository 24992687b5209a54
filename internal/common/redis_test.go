package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	rdb := TestRedis(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	t.Run("store and load", func(t *testing.T) {
		require.NoError(t, c.Store(ctx, CacheKeyPost("hello"), map[string]string{"title": "Hello"}))

		var got map[string]string
		assert.True(t, c.Load(ctx, CacheKeyPost("hello"), &got))
		assert.Equal(t, "Hello", got["title"])

		ttl, err := rdb.TTL(ctx, CacheKeyPost("hello")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("invalidate posts", func(t *testing.T) {
		require.NoError(t, c.Store(ctx, CacheKeyPost("a"), 1))
		require.NoError(t, c.Store(ctx, CacheKeyPosts("10", "0"), 1))
		require.NoError(t, rdb.Set(ctx, "session:1", "kept", 0).Err())

		require.NoError(t, c.InvalidatePosts(ctx))

		var v int
		assert.False(t, c.Load(ctx, CacheKeyPost("a"), &v))
		assert.False(t, c.Load(ctx, CacheKeyPosts("10", "0"), &v))

		kept, err := rdb.Get(ctx, "session:1").Result()
		require.NoError(t, err)
		assert.Equal(t, "kept", kept)
	})

	t.Run("invalidate by tags", func(t *testing.T) {
		require.NoError(t, c.Store(ctx, "feed.xml", "<rss/>", TagFeed))
		require.NoError(t, c.Store(ctx, "about", "about", TagStatic))

		require.NoError(t, c.InvalidateByTags(ctx, TagFeed, TagSitemap))

		var s string
		assert.False(t, c.Load(ctx, "feed.xml", &s))
		assert.True(t, c.Load(ctx, "about", &s))

		n, err := rdb.Exists(ctx, redisTagPrefix+TagFeed).Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
