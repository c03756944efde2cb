package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/serroba/shortlink/internal/shortener"
)

// MemoryCache is an in-process implementation of shortener.Cache.
// Clicks counted on an entry are handed to the sink when it leaves the cache.
type MemoryCache struct {
	mu    sync.Mutex // serialises Put so a replaced entry is flushed once
	items *gocache.Cache
	ttl   time.Duration
	sink  shortener.ClickSink
	now   func() time.Time
}

type memoryEntry struct {
	mu          sync.Mutex
	originalURL string
	filledWith  int64
	clicks      int64
	insertedAt  time.Time
	closed      bool
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration, sink shortener.ClickSink) *MemoryCache {
	c := &MemoryCache{
		items: gocache.New(ttl, max(ttl/2, time.Second)),
		ttl:   ttl,
		sink:  sink,
		now:   time.Now,
	}

	c.items.OnEvicted(c.evicted)

	return c
}

func (c *MemoryCache) Get(_ context.Context, shortID string) (*shortener.CacheEntry, error) {
	item, ok := c.items.Get(shortID)
	if !ok {
		return nil, shortener.ErrCacheMiss
	}

	entry := item.(*memoryEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.closed {
		return nil, shortener.ErrCacheMiss
	}

	return &shortener.CacheEntry{
		ShortID:     shortID,
		OriginalURL: entry.originalURL,
		ClickCount:  entry.clicks,
		InsertedAt:  entry.insertedAt,
	}, nil
}

func (c *MemoryCache) Put(_ context.Context, shortID, originalURL string, clickCount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Delete runs the eviction hook, Set would not.
	c.items.Delete(shortID)
	c.items.Set(shortID, &memoryEntry{
		originalURL: originalURL,
		filledWith:  clickCount,
		clicks:      clickCount,
		insertedAt:  c.now(),
	}, c.ttl)

	return nil
}

func (c *MemoryCache) IncrementLocal(_ context.Context, shortID string) (bool, error) {
	item, ok := c.items.Get(shortID)
	if !ok {
		return false, nil
	}

	entry := item.(*memoryEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.closed {
		return false, nil
	}

	entry.clicks++

	return true, nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

// Shutdown flushes the pending clicks of every entry and empties the cache.
func (c *MemoryCache) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.DeleteExpired()

	for shortID := range c.items.Items() {
		c.items.Delete(shortID)
	}

	return nil
}

func (c *MemoryCache) evicted(shortID string, item any) {
	entry, ok := item.(*memoryEntry)
	if !ok {
		return
	}

	entry.mu.Lock()
	if entry.closed {
		entry.mu.Unlock()

		return
	}

	entry.closed = true
	pending := entry.clicks - entry.filledWith
	entry.mu.Unlock()

	if pending > 0 && c.sink != nil {
		c.sink(shortID, pending)
	}
}

var _ shortener.Cache = (*MemoryCache)(nil)
