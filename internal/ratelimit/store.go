package ratelimit

import (
	"context"
	"time"
)

// Store defines the interface for rate limit counters.
type Store interface {
	// Record counts one request against key and returns the total recorded for
	// the window that ends at resetAt. The counter is discarded after resetAt.
	Record(ctx context.Context, key string, resetAt time.Time) (count int64, err error)
}
