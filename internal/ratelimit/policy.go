package ratelimit

// Policy holds the daily quota of every limited scope.
type Policy struct {
	Limits map[Scope]int64
}

// Limit returns the daily quota for scope. Scopes without a quota are unlimited.
func (p *Policy) Limit(scope Scope) (int64, bool) {
	if p == nil {
		return 0, false
	}

	limit, ok := p.Limits[scope]

	return limit, ok
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	limits map[Scope]int64
}

// NewPolicyBuilder creates an empty policy builder.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{limits: make(map[Scope]int64)}
}

// AddLimit sets the number of requests allowed per UTC day for scope.
func (b *PolicyBuilder) AddLimit(scope Scope, perDay int64) *PolicyBuilder {
	b.limits[scope] = perDay

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	limits := make(map[Scope]int64, len(b.limits))
	for scope, limit := range b.limits {
		limits[scope] = limit
	}

	return &Policy{Limits: limits}
}
