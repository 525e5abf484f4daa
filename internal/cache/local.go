package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的进程内缓存（L1）
type LocalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalCache 创建本地缓存
// maxItems: 最大条目数
// ttl: 条目过期时间，多实例下应当短于 Redis 的 TTL
func NewLocalCache(maxItems int64, ttl time.Duration) (*LocalCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{cache: c, ttl: ttl}, nil
}

func (l *LocalCache) Get(code string) (string, bool) {
	v, ok := l.cache.Get(code)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set 写入后等待缓冲区落地，保证随后的 Get 可见
func (l *LocalCache) Set(code, url string) {
	l.cache.SetWithTTL(code, url, 1, l.ttl)
	l.cache.Wait()
}

func (l *LocalCache) Del(code string) {
	l.cache.Del(code)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
