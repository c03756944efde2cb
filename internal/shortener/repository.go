package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
)

// Repository is the durable store of links and the single source of truth.
type Repository interface {
	FindByShortID(ctx context.Context, shortID string) (*Link, error)
	// Create inserts link and returns it with its store-assigned fields.
	// It returns ErrAlreadyExists if the short id is taken.
	Create(ctx context.Context, link *Link) (*Link, error)
	// IncrementClick adds one click and records visitorIP in a single atomic update.
	IncrementClick(ctx context.Context, shortID, visitorIP string) (*Link, error)
	// AddClicks adds clicks counted elsewhere, such as by the redirect cache.
	AddClicks(ctx context.Context, shortID string, clicks int64) error
	// CountCreatedToday counts links owned by owner created since midnight UTC.
	CountCreatedToday(ctx context.Context, owner string) (int64, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]*Link, error)
}

// ErrCacheMiss is returned by a Cache for absent or expired entries.
var ErrCacheMiss = errors.New("cache miss")

// CacheEntry is a cached redirect target.
type CacheEntry struct {
	ShortID     string
	OriginalURL string
	ClickCount  int64
	InsertedAt  time.Time
}

// Cache holds hot redirect targets in front of the Repository.
type Cache interface {
	Get(ctx context.Context, shortID string) (*CacheEntry, error)
	// Put inserts or replaces an entry with a fresh TTL.
	Put(ctx context.Context, shortID, originalURL string, clickCount int64) error
	// IncrementLocal counts a click on a live entry without extending its TTL.
	// It reports false if the entry is gone.
	IncrementLocal(ctx context.Context, shortID string) (bool, error)
}

// ClickSink receives clicks a cache entry counted locally that have not
// reached the Repository yet. Caches call it when an entry leaves the cache.
type ClickSink func(shortID string, clicks int64)

// Limiter admits or rejects requests against daily quotas.
type Limiter interface {
	Allow(ctx context.Context, principal string, scope ratelimit.Scope) (ratelimit.Decision, error)
}
