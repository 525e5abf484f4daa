package cache

import (
	"context"
	"time"

	"shorturl-service/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shortlink:"

// LinkCache 短码 → 原始 URL 的两级缓存：L1 本地，L2 Redis
// 两层都可以为 nil
type LinkCache struct {
	client *redis.Client
	local  *LocalCache
	ttl    time.Duration
}

// NewLinkCache 创建两级缓存
func NewLinkCache(client *redis.Client, local *LocalCache, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LinkCache{client: client, local: local, ttl: ttl}
}

// Get 未命中时返回 ("", nil)
func (c *LinkCache) Get(ctx context.Context, code string) (string, error) {
	if c.local != nil {
		if url, ok := c.local.Get(code); ok {
			metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			return url, nil
		}
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
	}
	if c.client == nil {
		return "", nil
	}

	url, err := c.client.Get(ctx, keyPrefix+code).Result()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()

	// 回填本地缓存
	if c.local != nil {
		c.local.Set(code, url)
	}
	return url, nil
}

func (c *LinkCache) Set(ctx context.Context, code, url string) error {
	if c.local != nil {
		c.local.Set(code, url)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+code, url, c.ttl).Err()
}

func (c *LinkCache) Delete(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.Del(code)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+code).Err()
}

// Close 关闭本地缓存，Redis 连接由创建方关闭
func (c *LinkCache) Close() {
	if c.local != nil {
		c.local.Close()
	}
}
