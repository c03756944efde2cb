package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
)

// RateLimitRedisStore keeps rate limit windows in Redis so that every
// instance of the service shares them.
type RateLimitRedisStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRedisStore creates a Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, resetAt time.Time) (int64, error) {
	var incr *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.prefix+key)
		pipe.ExpireAt(ctx, s.prefix+key, resetAt)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
