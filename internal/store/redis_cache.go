package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/shortener"
)

// Entries are hashes of url, base (click count at fill time), clicks and
// inserted (unix ms). Expiry is decided against the caller's clock so that
// stale entries can report their pending clicks before they are dropped.
// Redis removes forgotten keys after twice the TTL.
var (
	cacheGetScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'url', 'base', 'clicks', 'inserted')
if not v[1] then
	return false
end
local inserted = tonumber(v[4])
if tonumber(ARGV[1]) - inserted >= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1])
	return {0, v[1], tonumber(v[3]) - tonumber(v[2]), inserted}
end
return {1, v[1], tonumber(v[3]), inserted}
`)

	cacheIncrScript = redis.NewScript(`
local inserted = redis.call('HGET', KEYS[1], 'inserted')
if not inserted then
	return 0
end
if tonumber(ARGV[1]) - tonumber(inserted) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'clicks', 1)
return 1
`)

	cachePutScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'base', 'clicks')
local pending = 0
if v[1] then
	pending = tonumber(v[2]) - tonumber(v[1])
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'url', ARGV[1], 'base', ARGV[2], 'clicks', ARGV[2], 'inserted', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return pending
`)
)

// RedisCache is a Redis implementation of shortener.Cache shared by all
// instances of the service.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	sink   shortener.ClickSink
	now    func() time.Time
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithRedisCacheClock sets the clock used to expire entries.
func WithRedisCacheClock(now func() time.Time) RedisCacheOption {
	return func(c *RedisCache) {
		c.now = now
	}
}

// NewRedisCache creates a Redis-backed cache whose entries live for ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration, sink shortener.ClickSink, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: "link:cache:",
		ttl:    ttl,
		sink:   sink,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *RedisCache) Get(ctx context.Context, shortID string) (*shortener.CacheEntry, error) {
	res, err := cacheGetScript.Run(ctx, c.client, []string{c.prefix + shortID},
		c.now().UnixMilli(), c.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shortener.ErrCacheMiss
		}

		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	if len(res) != 4 {
		return nil, fmt.Errorf("read cache entry: unexpected reply %v", res)
	}

	live, _ := res[0].(int64)
	originalURL, _ := res[1].(string)
	clicks, _ := res[2].(int64)
	inserted, _ := res[3].(int64)

	if live == 0 {
		c.flush(shortID, clicks)

		return nil, shortener.ErrCacheMiss
	}

	return &shortener.CacheEntry{
		ShortID:     shortID,
		OriginalURL: originalURL,
		ClickCount:  clicks,
		InsertedAt:  time.UnixMilli(inserted),
	}, nil
}

func (c *RedisCache) Put(ctx context.Context, shortID, originalURL string, clickCount int64) error {
	pending, err := cachePutScript.Run(ctx, c.client, []string{c.prefix + shortID},
		originalURL, clickCount, c.now().UnixMilli(), (2 * c.ttl).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	c.flush(shortID, pending)

	return nil
}

func (c *RedisCache) IncrementLocal(ctx context.Context, shortID string) (bool, error) {
	counted, err := cacheIncrScript.Run(ctx, c.client, []string{c.prefix + shortID},
		c.now().UnixMilli(), c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("count cached click: %w", err)
	}

	return counted == 1, nil
}

func (c *RedisCache) flush(shortID string, pending int64) {
	if pending > 0 && c.sink != nil {
		c.sink(shortID, pending)
	}
}

var _ shortener.Cache = (*RedisCache)(nil)
