package shortener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	DefaultCreationLimit = 10
	DefaultMaxAttempts   = 5
	DefaultListLimit     = 50
	MaxListLimit         = 200
)

// Service creates and resolves links.
type Service struct {
	links         Repository
	cache         Cache
	limiter       Limiter
	generate      CodeGenerator
	logger        *zap.Logger
	creationLimit int64
	maxAttempts   int
	reserved      map[string]struct{}
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCreationLimit sets the durable per-principal daily creation limit.
func WithCreationLimit(limit int64) Option {
	return func(s *Service) {
		s.creationLimit = limit
	}
}

// WithMaxAttempts sets how many generated ids are tried before giving up.
func WithMaxAttempts(attempts int) Option {
	return func(s *Service) {
		s.maxAttempts = attempts
	}
}

// WithReservedIDs refuses ids that would shadow other routes, such as
// "health". Matching ignores case.
func WithReservedIDs(ids ...string) Option {
	return func(s *Service) {
		for _, id := range ids {
			s.reserved[strings.ToLower(id)] = struct{}{}
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires a Service from its collaborators.
func NewService(
	links Repository,
	cache Cache,
	limiter Limiter,
	generate CodeGenerator,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		links:         links,
		cache:         cache,
		limiter:       limiter,
		generate:      generate,
		logger:        logger,
		creationLimit: DefaultCreationLimit,
		maxAttempts:   DefaultMaxAttempts,
		reserved:      make(map[string]struct{}),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateLink shortens originalURL on behalf of principal. An empty
// customShortID asks for a generated id.
func (s *Service) CreateLink(ctx context.Context, principal, originalURL, customShortID string) (*Link, error) {
	target, err := NormalizeURL(originalURL)
	if err != nil {
		return nil, err
	}

	if customShortID != "" && !ValidShortID(customShortID) {
		return nil, fmt.Errorf("%w: custom short id must be 1 to %d letters or digits", ErrInvalidInput, IDLength)
	}

	if customShortID != "" && s.isReserved(customShortID) {
		return nil, fmt.Errorf("%w: short id %q is reserved", ErrInvalidInput, customShortID)
	}

	if principal == "" {
		return nil, ErrAuthRequired
	}

	if err := s.admitCreation(ctx, principal); err != nil {
		return nil, err
	}

	if customShortID != "" {
		link, err := s.links.Create(ctx, s.newLink(principal, target, customShortID))
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAliasTaken, customShortID)
		}

		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.logCreated(link)

		return link, nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		shortID := s.generate()
		if s.isReserved(shortID) {
			s.logger.Debug("generated short id is reserved", zap.Int("attempt", attempt))

			continue
		}

		link, err := s.links.Create(ctx, s.newLink(principal, target, shortID))
		if err == nil {
			s.logCreated(link)

			return link, nil
		}

		if !errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.logger.Debug("generated short id collided", zap.Int("attempt", attempt))
	}

	s.logger.Error("short id space exhausted", zap.Int("attempts", s.maxAttempts))

	return nil, ErrIDSpaceExhausted
}

// admitCreation consults the limiter first and then the store, which still
// holds the count when limiter state was lost.
func (s *Service) admitCreation(ctx context.Context, principal string) error {
	decision, err := s.limiter.Allow(ctx, principal, ratelimit.ScopeCreation)
	if err != nil {
		return fmt.Errorf("check creation limit: %w", err)
	}

	if !decision.Allowed {
		s.logger.Warn("creation limit exceeded",
			zap.String("principal", principal),
			zap.Int64("count", decision.Count),
			zap.Int64("limit", decision.Limit),
		)

		return &RateLimitError{Scope: ratelimit.ScopeCreation, Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}

	created, err := s.links.CountCreatedToday(ctx, principal)
	if err != nil {
		return fmt.Errorf("count links created today: %w", err)
	}

	if created >= s.creationLimit {
		s.logger.Warn("durable creation limit exceeded",
			zap.String("principal", principal),
			zap.Int64("created", created),
			zap.Int64("limit", s.creationLimit),
		)

		return &RateLimitError{
			Scope:      ratelimit.ScopeCreation,
			Limit:      s.creationLimit,
			RetryAfter: ratelimit.UntilReset(s.now()),
		}
	}

	return nil
}

func (s *Service) isReserved(shortID string) bool {
	_, ok := s.reserved[strings.ToLower(shortID)]

	return ok
}

func (s *Service) newLink(principal, target, shortID string) *Link {
	return &Link{
		Owner:       principal,
		OriginalURL: target,
		ShortID:     shortID,
		CreatedAt:   s.now().UTC(),
	}
}

func (s *Service) logCreated(link *Link) {
	s.logger.Info("link created",
		zap.String("short_id", link.ShortID),
		zap.String("owner", link.Owner),
	)
}

// Resolve returns the target of shortID and counts the visit from visitorIP.
func (s *Service) Resolve(ctx context.Context, shortID, visitorIP string) (string, error) {
	decision, err := s.limiter.Allow(ctx, visitorIP, ratelimit.ScopeRedirect)
	if err != nil {
		return "", fmt.Errorf("check redirect limit: %w", err)
	}

	if !decision.Allowed {
		s.logger.Warn("redirect limit exceeded",
			zap.String("client_ip", visitorIP),
			zap.Int64("count", decision.Count),
			zap.Int64("limit", decision.Limit),
		)

		return "", &RateLimitError{Scope: ratelimit.ScopeRedirect, Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}

	if target, ok := s.cachedTarget(ctx, shortID); ok {
		return target, nil
	}

	if _, err := s.links.FindByShortID(ctx, shortID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}

		return "", fmt.Errorf("find link: %w", err)
	}

	link, err := s.links.IncrementClick(ctx, shortID, visitorIP)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}

		return "", fmt.Errorf("count click: %w", err)
	}

	if err := s.cache.Put(ctx, shortID, link.OriginalURL, link.ClickCount); err != nil {
		s.logger.Warn("failed to cache redirect", zap.String("short_id", shortID), zap.Error(err))
	}

	return link.OriginalURL, nil
}

// cachedTarget serves a redirect from the cache. Cache failures fall back to the store.
func (s *Service) cachedTarget(ctx context.Context, shortID string) (string, bool) {
	entry, err := s.cache.Get(ctx, shortID)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("redirect cache read failed", zap.String("short_id", shortID), zap.Error(err))
		}

		return "", false
	}

	counted, err := s.cache.IncrementLocal(ctx, shortID)
	if err != nil {
		s.logger.Warn("redirect cache increment failed", zap.String("short_id", shortID), zap.Error(err))

		return "", false
	}

	// The entry expired between Get and IncrementLocal.
	if !counted {
		return "", false
	}

	return entry.OriginalURL, true
}

// Stats returns the stored link, including its authoritative click count.
func (s *Service) Stats(ctx context.Context, shortID string) (*Link, error) {
	link, err := s.links.FindByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("find link: %w", err)
	}

	return link, nil
}

// ListLinks returns the newest links owned by principal.
func (s *Service) ListLinks(ctx context.Context, principal string, limit int) ([]*Link, error) {
	if principal == "" {
		return nil, ErrAuthRequired
	}

	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	links, err := s.links.ListByOwner(ctx, principal, limit)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	return links, nil
}
