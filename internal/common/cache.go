package common

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	postKeyPrefix  = "post:"
	postsKeyPrefix = "posts:"

	TagStatic  = "static"
	TagSitemap = "sitemap"
	TagFeed    = "feed"
)

// PostCacheTags are the cache groups flushed on every post mutation.
var PostCacheTags = []string{TagStatic, TagSitemap, TagFeed}

// CacheInvalidator clears cached post pages. Invalidation is coarse: every
// post entry goes at once.
type CacheInvalidator interface {
	InvalidatePosts(ctx context.Context) error
	InvalidateByTags(ctx context.Context, tags ...string) error
}

// PageCache stores JSON encoded read results and can drop them again.
type PageCache interface {
	CacheInvalidator
	Load(ctx context.Context, key string, dst any) bool
	Store(ctx context.Context, key string, value any, tags ...string) error
}

type Cache struct {
	*cache.Cache

	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	return &Cache{
		Cache: cache.New(expirationTime, cleanupTime),
		tags:  make(map[string]map[string]struct{}),
	}
}

func (c *Cache) Set(key string, value interface{}, expiration ...time.Duration) {
	if len(expiration) > 0 {
		c.Cache.Set(key, value, expiration[0])
		return
	}
	c.Cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *Cache) Flush() {
	c.Cache.Flush()

	c.mu.Lock()
	c.tags = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// Load decodes the cached value under key into dst.
func (c *Cache) Load(_ context.Context, key string, dst any) bool {
	v, ok := c.Cache.Get(key)
	if !ok {
		return false
	}

	b, ok := v.([]byte)
	if !ok {
		return false
	}

	return json.Unmarshal(b, dst) == nil
}

// Store encodes value and caches it under key, registering the key with each tag.
func (c *Cache) Store(_ context.Context, key string, value any, tags ...string) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.Set(key, b)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	return nil
}

func (c *Cache) InvalidatePosts(_ context.Context) error {
	for key := range c.Cache.Items() {
		if isPostKey(key) {
			c.Cache.Delete(key)
		}
	}

	return nil
}

func (c *Cache) InvalidateByTags(_ context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tag := range tags {
		for key := range c.tags[tag] {
			c.Cache.Delete(key)
		}
		delete(c.tags, tag)
	}

	return nil
}

func isPostKey(key string) bool {
	return strings.HasPrefix(key, postKeyPrefix) || strings.HasPrefix(key, postsKeyPrefix)
}

func CacheKeyPost(slug string) string {
	return postKeyPrefix + slug
}

// CacheKeyPosts builds the listing key from the already normalised query parts.
func CacheKeyPosts(parts ...string) string {
	return postsKeyPrefix + strings.Join(parts, ":")
}
