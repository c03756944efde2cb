package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// Counters live until their window resets.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

// RateLimitOption configures a RateLimitMemoryStore.
type RateLimitOption func(*RateLimitMemoryStore)

// WithRateLimitClock sets the clock used to expire windows.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(s *RateLimitMemoryStore) {
		s.now = now
	}
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore(opts ...RateLimitOption) *RateLimitMemoryStore {
	s := &RateLimitMemoryStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, resetAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	window, ok := s.windows[key]
	if !ok || !now.Before(window.resetAt) {
		window = &rateWindow{resetAt: resetAt}
		s.windows[key] = window
	}

	window.count++

	return window.count, nil
}

// Sweep drops windows that have reset and returns how many were removed.
func (s *RateLimitMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0

	for key, window := range s.windows {
		if !now.Before(window.resetAt) {
			delete(s.windows, key)

			removed++
		}
	}

	return removed
}

// StartSweeper sweeps reset windows every interval until Shutdown is called.
func (s *RateLimitMemoryStore) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Shutdown stops the sweeper.
func (s *RateLimitMemoryStore) Shutdown() error {
	s.once.Do(func() { close(s.stop) })

	return nil
}

// Len returns the number of live windows.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
