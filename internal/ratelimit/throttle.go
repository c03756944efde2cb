package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits or rejects a single request identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

const defaultIdleTTL = 10 * time.Minute

// Throttle is a per-client token bucket that smooths request bursts.
// It is independent of the daily quotas enforced by DailyLimiter.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*throttleClient
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type throttleClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithIdleTTL sets how long an idle client keeps its bucket.
func WithIdleTTL(ttl time.Duration) ThrottleOption {
	return func(t *Throttle) {
		t.idleTTL = ttl
	}
}

// NewThrottle creates a throttle refilling rps tokens per second up to burst.
func NewThrottle(rps float64, burst int, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		clients: make(map[string]*throttleClient),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Allow takes one token from the bucket of key.
func (t *Throttle) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	c, ok := t.clients[key]
	if !ok {
		c = &throttleClient{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[key] = c
	}

	c.lastSeen = now

	return c.limiter.AllowN(now, 1), nil
}

// Sweep forgets clients idle for longer than the idle TTL and returns how many were dropped.
func (t *Throttle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleTTL)
	dropped := 0

	for key, c := range t.clients {
		if c.lastSeen.Before(cutoff) {
			delete(t.clients, key)
			dropped++
		}
	}

	return dropped
}

// StartSweeper sweeps idle clients every interval until Shutdown is called.
func (t *Throttle) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}

// Shutdown stops the sweeper.
func (t *Throttle) Shutdown() error {
	t.once.Do(func() { close(t.stop) })

	return nil
}
