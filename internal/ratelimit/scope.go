package ratelimit

import "github.com/danielgtaylor/huma/v2"

// Scope names an independently counted quota.
type Scope string

const (
	// ScopeCreation counts links created by an authenticated principal.
	ScopeCreation Scope = "creation"
	// ScopeRedirect counts redirects followed from a client address.
	ScopeRedirect Scope = "redirect"
)

// MetadataKey is the key used to store throttle config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint throttle configuration.
// It is attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Disabled skips the burst throttle for this endpoint.
	Disabled bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
