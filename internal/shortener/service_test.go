package shortener_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// countingRepo records how often the store is asked to write.
type countingRepo struct {
	shortener.Repository

	creates    atomic.Int64
	increments atomic.Int64
}

func (r *countingRepo) Create(ctx context.Context, link *shortener.Link) (*shortener.Link, error) {
	r.creates.Add(1)

	return r.Repository.Create(ctx, link)
}

func (r *countingRepo) IncrementClick(ctx context.Context, shortID, visitorIP string) (*shortener.Link, error) {
	r.increments.Add(1)

	return r.Repository.IncrementClick(ctx, shortID, visitorIP)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*shortener.CacheEntry
	local   map[string]int64
	getErr  error
	noStore bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]*shortener.CacheEntry),
		local:   make(map[string]int64),
	}
}

func (c *fakeCache) Get(_ context.Context, shortID string) (*shortener.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	entry, ok := c.entries[shortID]
	if !ok {
		return nil, shortener.ErrCacheMiss
	}

	cp := *entry

	return &cp, nil
}

func (c *fakeCache) Put(_ context.Context, shortID, originalURL string, clickCount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.noStore {
		return nil
	}

	c.entries[shortID] = &shortener.CacheEntry{
		ShortID:     shortID,
		OriginalURL: originalURL,
		ClickCount:  clickCount,
	}

	return nil
}

func (c *fakeCache) IncrementLocal(_ context.Context, shortID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[shortID]
	if !ok {
		return false, nil
	}

	entry.ClickCount++
	c.local[shortID]++

	return true, nil
}

func (c *fakeCache) Drop(shortID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, shortID)
}

type fixture struct {
	clock   *fakeClock
	repo    *countingRepo
	cache   *fakeCache
	service *shortener.Service
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	creationLimit int64
	redirectLimit int64
	generate      shortener.CodeGenerator
	repo          shortener.Repository
	reserved      []string
}

func withRedirectLimit(limit int64) fixtureOption {
	return func(c *fixtureConfig) { c.redirectLimit = limit }
}

func withGenerator(gen shortener.CodeGenerator) fixtureOption {
	return func(c *fixtureConfig) { c.generate = gen }
}

func withReservedIDs(ids ...string) fixtureOption {
	return func(c *fixtureConfig) { c.reserved = ids }
}

func withRepository(repo shortener.Repository) fixtureOption {
	return func(c *fixtureConfig) { c.repo = repo }
}

func newFixture(t *testing.T, clock *fakeClock, opts ...fixtureOption) *fixture {
	t.Helper()

	gen, err := shortener.NewGenerator(shortener.IDLength)
	require.NoError(t, err)

	cfg := &fixtureConfig{
		creationLimit: 10,
		redirectLimit: 1000,
		generate:      gen,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.repo == nil {
		cfg.repo = store.NewMemoryStore(store.WithMemoryClock(clock.Now))
	}

	policy := ratelimit.NewPolicyBuilder().
		AddLimit(ratelimit.ScopeCreation, cfg.creationLimit).
		AddLimit(ratelimit.ScopeRedirect, cfg.redirectLimit).
		Build()
	limiter := ratelimit.NewDailyLimiter(
		store.NewRateLimitMemoryStore(store.WithRateLimitClock(clock.Now)),
		policy,
		ratelimit.WithClock(clock.Now),
	)

	repo := &countingRepo{Repository: cfg.repo}
	cache := newFakeCache()

	return &fixture{
		clock: clock,
		repo:  repo,
		cache: cache,
		service: shortener.NewService(repo, cache, limiter, cfg.generate, zap.NewNop(),
			shortener.WithCreationLimit(cfg.creationLimit),
			shortener.WithClock(clock.Now),
			shortener.WithReservedIDs(cfg.reserved...),
		),
	}
}

func morning() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func TestService_CreateLink(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a link with a generated id", func(t *testing.T) {
		f := newFixture(t, morning())

		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/a", "")

		require.NoError(t, err)
		assert.Len(t, link.ShortID, shortener.IDLength)
		assert.True(t, shortener.ValidShortID(link.ShortID))
		assert.Equal(t, "alice", link.Owner)
		assert.Equal(t, "https://example.com/a", link.OriginalURL)
		assert.Equal(t, int64(0), link.ClickCount)
		assert.Equal(t, f.clock.Now(), link.CreatedAt)
	})

	t.Run("normalizes the target", func(t *testing.T) {
		f := newFixture(t, morning())

		link, err := f.service.CreateLink(ctx, "alice", "HTTPS://Example.COM:443/Path?q=1", "")

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/Path?q=1", link.OriginalURL)
	})

	t.Run("uses a custom id when given", func(t *testing.T) {
		f := newFixture(t, morning())

		link, err := f.service.CreateLink(ctx, "alice", "https://example.com", "promo")

		require.NoError(t, err)
		assert.Equal(t, "promo", link.ShortID)
	})

	t.Run("rejects invalid input before checking the principal", func(t *testing.T) {
		f := newFixture(t, morning())

		for _, target := range []string{"", "   ", "ftp://example.com", "https://", "not a url"} {
			_, err := f.service.CreateLink(ctx, "", target, "")
			assert.ErrorIs(t, err, shortener.ErrInvalidInput, "target %q", target)
		}
	})

	t.Run("rejects malformed custom ids", func(t *testing.T) {
		f := newFixture(t, morning())

		for _, id := range []string{"toolong1", "has-dash", "sp ace"} {
			_, err := f.service.CreateLink(ctx, "alice", "https://example.com", id)
			assert.ErrorIs(t, err, shortener.ErrInvalidInput, "id %q", id)
		}
	})

	t.Run("requires a principal", func(t *testing.T) {
		f := newFixture(t, morning())

		_, err := f.service.CreateLink(ctx, "", "https://example.com", "")

		require.ErrorIs(t, err, shortener.ErrAuthRequired)
		assert.Equal(t, int64(0), f.repo.creates.Load())
	})

	t.Run("reports a taken custom id", func(t *testing.T) {
		f := newFixture(t, morning())
		_, err := f.service.CreateLink(ctx, "alice", "https://example.com/1", "promo")
		require.NoError(t, err)

		_, err = f.service.CreateLink(ctx, "bob", "https://example.com/2", "promo")

		require.ErrorIs(t, err, shortener.ErrAliasTaken)

		link, err := f.service.Stats(ctx, "promo")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/1", link.OriginalURL)
	})

	t.Run("exactly one concurrent request wins a custom id", func(t *testing.T) {
		f := newFixture(t, morning())

		const racers = 20

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int64
			taken     atomic.Int64
		)

		for i := range racers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				principal := fmt.Sprintf("user%d", i)

				_, err := f.service.CreateLink(ctx, principal, "https://example.com", "race")
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, shortener.ErrAliasTaken):
					taken.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(1), succeeded.Load())
		assert.Equal(t, int64(racers-1), taken.Load())
	})

	t.Run("limits creations per day and resets at midnight", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)}
		f := newFixture(t, clock)

		for i := range 10 {
			_, err := f.service.CreateLink(ctx, "alice", fmt.Sprintf("https://example.com/%d", i), "")
			require.NoError(t, err)
		}

		_, err := f.service.CreateLink(ctx, "alice", "https://example.com/11", "")

		require.ErrorIs(t, err, shortener.ErrRateLimited)

		var rlErr *shortener.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, ratelimit.ScopeCreation, rlErr.Scope)
		assert.Equal(t, 4*time.Hour, rlErr.RetryAfter)

		_, err = f.service.CreateLink(ctx, "bob", "https://example.com/bob", "")
		require.NoError(t, err)

		clock.Advance(4 * time.Hour)

		_, err = f.service.CreateLink(ctx, "alice", "https://example.com/tomorrow", "")
		require.NoError(t, err)
	})

	t.Run("durable count limits creations when the limiter forgot", func(t *testing.T) {
		clock := morning()
		repo := store.NewMemoryStore(store.WithMemoryClock(clock.Now))

		first := newFixture(t, clock, withRepository(repo))
		for i := range 10 {
			_, err := first.service.CreateLink(ctx, "alice", fmt.Sprintf("https://example.com/%d", i), "")
			require.NoError(t, err)
		}

		restarted := newFixture(t, clock, withRepository(repo))

		_, err := restarted.service.CreateLink(ctx, "alice", "https://example.com/more", "")

		require.ErrorIs(t, err, shortener.ErrRateLimited)
		assert.Equal(t, int64(0), restarted.repo.creates.Load())
	})

	t.Run("retries generated ids that collide", func(t *testing.T) {
		clock := morning()
		ids := []string{"taken1", "taken1", "fresh1"}

		var next atomic.Int64

		f := newFixture(t, clock, withGenerator(func() string {
			return ids[next.Add(1)-1]
		}))
		_, err := f.service.CreateLink(ctx, "bob", "https://example.com/x", "taken1")
		require.NoError(t, err)

		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/y", "")

		require.NoError(t, err)
		assert.Equal(t, "fresh1", link.ShortID)
		assert.Equal(t, int64(4), f.repo.creates.Load())
	})

	t.Run("rejects reserved custom ids in any case", func(t *testing.T) {
		f := newFixture(t, morning(), withReservedIDs("health", "links"))

		for _, id := range []string{"health", "Links"} {
			_, err := f.service.CreateLink(ctx, "alice", "https://example.com", id)

			require.ErrorIs(t, err, shortener.ErrInvalidInput, id)
		}

		assert.Equal(t, int64(0), f.repo.creates.Load())
	})

	t.Run("skips reserved generated ids", func(t *testing.T) {
		ids := []string{"health", "fresh1"}

		var next atomic.Int64

		f := newFixture(t, morning(), withReservedIDs("health"), withGenerator(func() string {
			return ids[next.Add(1)-1]
		}))

		link, err := f.service.CreateLink(ctx, "alice", "https://example.com", "")

		require.NoError(t, err)
		assert.Equal(t, "fresh1", link.ShortID)
		assert.Equal(t, int64(1), f.repo.creates.Load())
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		f := newFixture(t, morning(), withGenerator(func() string { return "same1" }))
		_, err := f.service.CreateLink(ctx, "bob", "https://example.com/x", "same1")
		require.NoError(t, err)

		_, err = f.service.CreateLink(ctx, "alice", "https://example.com/y", "")

		require.ErrorIs(t, err, shortener.ErrIDSpaceExhausted)
		assert.Equal(t, int64(1+shortener.DefaultMaxAttempts), f.repo.creates.Load())
	})
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ErrNotFound for unknown ids", func(t *testing.T) {
		f := newFixture(t, morning())

		_, err := f.service.Resolve(ctx, "nope", "10.0.0.1")

		require.ErrorIs(t, err, shortener.ErrNotFound)
		assert.Equal(t, int64(0), f.repo.increments.Load())
	})

	t.Run("counts a cold redirect in the store and caches it", func(t *testing.T) {
		f := newFixture(t, morning())
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		target, err := f.service.Resolve(ctx, link.ShortID, "10.0.0.1")

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/doc", target)
		assert.Equal(t, int64(1), f.repo.increments.Load())

		entry, err := f.cache.Get(ctx, link.ShortID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.ClickCount)
	})

	t.Run("serves cache hits without touching the store", func(t *testing.T) {
		f := newFixture(t, morning())
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		for range 5 {
			target, err := f.service.Resolve(ctx, link.ShortID, "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, "https://example.com/doc", target)
		}

		assert.Equal(t, int64(1), f.repo.increments.Load())
		assert.Equal(t, int64(4), f.cache.local[link.ShortID])
	})

	t.Run("every cold redirect adds one click", func(t *testing.T) {
		f := newFixture(t, morning())
		f.cache.noStore = true
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		const visits = 7
		for i := range visits {
			_, err := f.service.Resolve(ctx, link.ShortID, fmt.Sprintf("10.0.0.%d", i%3))
			require.NoError(t, err)
		}

		stats, err := f.service.Stats(ctx, link.ShortID)
		require.NoError(t, err)
		assert.Equal(t, int64(visits), stats.ClickCount)
		assert.Equal(t, 3, stats.UniqueVisitors())
	})

	t.Run("falls back to the store when the cache fails", func(t *testing.T) {
		f := newFixture(t, morning())
		f.cache.getErr = errors.New("cache down")
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		target, err := f.service.Resolve(ctx, link.ShortID, "10.0.0.1")

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/doc", target)
		assert.Equal(t, int64(1), f.repo.increments.Load())
	})

	t.Run("counts in the store again once the entry is gone", func(t *testing.T) {
		f := newFixture(t, morning())
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		_, err = f.service.Resolve(ctx, link.ShortID, "10.0.0.1")
		require.NoError(t, err)
		f.cache.Drop(link.ShortID)

		_, err = f.service.Resolve(ctx, link.ShortID, "10.0.0.2")
		require.NoError(t, err)

		assert.Equal(t, int64(2), f.repo.increments.Load())
	})

	t.Run("limits redirects per visitor", func(t *testing.T) {
		f := newFixture(t, morning(), withRedirectLimit(3))
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/doc", "")
		require.NoError(t, err)

		for range 3 {
			_, err := f.service.Resolve(ctx, link.ShortID, "10.0.0.1")
			require.NoError(t, err)
		}

		_, err = f.service.Resolve(ctx, link.ShortID, "10.0.0.1")

		var rlErr *shortener.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, ratelimit.ScopeRedirect, rlErr.Scope)
		assert.Equal(t, 15*time.Hour, rlErr.RetryAfter)

		_, err = f.service.Resolve(ctx, link.ShortID, "10.0.0.2")
		require.NoError(t, err)
	})
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("reports clicks and unique visitors", func(t *testing.T) {
		f := newFixture(t, morning())
		f.cache.noStore = true
		link, err := f.service.CreateLink(ctx, "alice", "https://example.com/report", "report")
		require.NoError(t, err)

		for _, ip := range []string{"198.51.100.7", "198.51.100.7", "203.0.113.9"} {
			_, err := f.service.Resolve(ctx, link.ShortID, ip)
			require.NoError(t, err)
		}

		stats, err := f.service.Stats(ctx, "report")

		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.ClickCount)
		assert.Equal(t, 2, stats.UniqueVisitors())
		assert.ElementsMatch(t, []string{"198.51.100.7", "203.0.113.9"}, stats.VisitorIPs)
	})

	t.Run("returns ErrNotFound for unknown ids", func(t *testing.T) {
		f := newFixture(t, morning())

		_, err := f.service.Stats(ctx, "nope")

		require.ErrorIs(t, err, shortener.ErrNotFound)
	})
}

func TestService_ListLinks(t *testing.T) {
	ctx := context.Background()

	t.Run("lists only the principal's links, newest first", func(t *testing.T) {
		f := newFixture(t, morning())

		for i := range 3 {
			_, err := f.service.CreateLink(ctx, "alice", fmt.Sprintf("https://example.com/%d", i), "")
			require.NoError(t, err)
			f.clock.Advance(time.Minute)
		}

		_, err := f.service.CreateLink(ctx, "bob", "https://example.com/bob", "")
		require.NoError(t, err)

		links, err := f.service.ListLinks(ctx, "alice", 0)

		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "https://example.com/2", links[0].OriginalURL)
		assert.Equal(t, "https://example.com/0", links[2].OriginalURL)
	})

	t.Run("honours the limit", func(t *testing.T) {
		f := newFixture(t, morning())

		for i := range 3 {
			_, err := f.service.CreateLink(ctx, "alice", fmt.Sprintf("https://example.com/%d", i), "")
			require.NoError(t, err)
		}

		links, err := f.service.ListLinks(ctx, "alice", 2)

		require.NoError(t, err)
		assert.Len(t, links, 2)
	})

	t.Run("requires a principal", func(t *testing.T) {
		f := newFixture(t, morning())

		_, err := f.service.ListLinks(ctx, "", 10)

		require.ErrorIs(t, err, shortener.ErrAuthRequired)
	})
}
