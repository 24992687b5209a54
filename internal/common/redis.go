package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTagPrefix = "cache_tag:"

// RedisCache is the PageCache shared between several app instances.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}

	return rdb, nil
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context, key string, dst any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}

	return json.Unmarshal(b, dst) == nil
}

func (c *RedisCache) Store(ctx context.Context, key string, value any, tags ...string) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, c.ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, redisTagPrefix+tag, key)
		}
		return nil
	})

	return err
}

func (c *RedisCache) InvalidatePosts(ctx context.Context) error {
	var keys []string

	for _, pattern := range []string{postKeyPrefix + "*", postsKeyPrefix + "*"} {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}

	if len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisCache) InvalidateByTags(ctx context.Context, tags ...string) error {
	var errs []error

	for _, tag := range tags {
		tagKey := redisTagPrefix + tag

		keys, err := c.rdb.SMembers(ctx, tagKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			errs = append(errs, err)
			continue
		}

		if err := c.rdb.Del(ctx, append(keys, tagKey)...).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
