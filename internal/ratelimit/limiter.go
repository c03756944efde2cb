package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed    bool
	Scope      Scope
	Count      int64
	Limit      int64
	RetryAfter time.Duration // zero when allowed
}

// DailyLimiter enforces per-principal quotas over fixed UTC calendar days.
//
// Allow consumes quota as soon as it admits a request, whatever the outcome of
// the operation it guards.
type DailyLimiter struct {
	store  Store
	policy *Policy
	now    func() time.Time
}

// Option configures a DailyLimiter.
type Option func(*DailyLimiter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *DailyLimiter) {
		l.now = now
	}
}

// NewDailyLimiter creates a limiter that counts requests in store according to policy.
func NewDailyLimiter(store Store, policy *Policy, opts ...Option) *DailyLimiter {
	l := &DailyLimiter{
		store:  store,
		policy: policy,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow records a request by principal in scope and reports whether it fits the quota.
func (l *DailyLimiter) Allow(ctx context.Context, principal string, scope Scope) (Decision, error) {
	limit, ok := l.policy.Limit(scope)
	if !ok {
		return Decision{Allowed: true, Scope: scope}, nil
	}

	now := l.now().UTC()
	start := StartOfDay(now)
	resetAt := start.Add(day)

	count, err := l.store.Record(ctx, windowKey(scope, principal, start), resetAt)
	if err != nil {
		return Decision{}, fmt.Errorf("record %s request: %w", scope, err)
	}

	decision := Decision{
		Allowed: count <= limit,
		Scope:   scope,
		Count:   count,
		Limit:   limit,
	}
	if !decision.Allowed {
		decision.RetryAfter = resetAt.Sub(now)
	}

	return decision, nil
}

// Policy returns the limiter's policy.
func (l *DailyLimiter) Policy() *Policy {
	return l.policy
}

func windowKey(scope Scope, principal string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%s", scope, principal, start.Format(time.DateOnly))
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UntilReset returns the time left until the next UTC midnight.
func UntilReset(now time.Time) time.Duration {
	return StartOfDay(now).Add(day).Sub(now.UTC())
}
