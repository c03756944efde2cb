package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository and auth.Store.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	links      map[string]*memoryLink // short id -> link
	principals map[string]auth.Credentials
	now        func() time.Time
}

type memoryLink struct {
	link     shortener.Link
	visitors map[string]struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used to find the start of the current day.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		links:      make(map[string]*memoryLink),
		principals: make(map[string]auth.Credentials),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryStore) FindByShortID(_ context.Context, shortID string) (*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.links[shortID]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return stored.snapshot(), nil
}

func (m *MemoryStore) Create(_ context.Context, link *shortener.Link) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.ShortID]; ok {
		return nil, shortener.ErrAlreadyExists
	}

	m.nextID++

	stored := &memoryLink{
		link: shortener.Link{
			ID:          m.nextID,
			Owner:       link.Owner,
			OriginalURL: link.OriginalURL,
			ShortID:     link.ShortID,
			CreatedAt:   link.CreatedAt,
		},
		visitors: make(map[string]struct{}),
	}
	m.links[link.ShortID] = stored

	return stored.snapshot(), nil
}

func (m *MemoryStore) IncrementClick(_ context.Context, shortID, visitorIP string) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[shortID]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	stored.link.ClickCount++

	if visitorIP != "" {
		stored.visitors[visitorIP] = struct{}{}
	}

	return stored.snapshot(), nil
}

func (m *MemoryStore) AddClicks(_ context.Context, shortID string, clicks int64) error {
	if clicks <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[shortID]
	if !ok {
		return shortener.ErrNotFound
	}

	stored.link.ClickCount += clicks

	return nil
}

func (m *MemoryStore) CountCreatedToday(_ context.Context, owner string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := ratelimit.StartOfDay(m.now())

	var count int64

	for _, stored := range m.links {
		if stored.link.Owner == owner && !stored.link.CreatedAt.Before(start) {
			count++
		}
	}

	return count, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, owner string, limit int) ([]*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]*shortener.Link, 0)

	for _, stored := range m.links {
		if stored.link.Owner == owner {
			links = append(links, stored.snapshot())
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}

		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}

	return links, nil
}

func (m *MemoryStore) CreatePrincipal(_ context.Context, creds *auth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.principals[creds.Login]; ok {
		return auth.ErrLoginTaken
	}

	m.principals[creds.Login] = *creds

	return nil
}

func (m *MemoryStore) FindCredentials(_ context.Context, login string) (*auth.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.principals[login]
	if !ok {
		return nil, auth.ErrUnknownPrincipal
	}

	return &creds, nil
}

func (s *memoryLink) snapshot() *shortener.Link {
	link := s.link

	link.VisitorIPs = make([]string, 0, len(s.visitors))
	for ip := range s.visitors {
		link.VisitorIPs = append(link.VisitorIPs, ip)
	}

	sort.Strings(link.VisitorIPs)

	return &link
}

var (
	_ shortener.Repository = (*MemoryStore)(nil)
	_ auth.Store           = (*MemoryStore)(nil)
)
