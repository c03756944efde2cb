// Package health reports whether the service can reach its dependencies.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	healthy   = "healthy"
	unhealthy = "unhealthy"

	defaultTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a ping function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker adapts a Redis client to the Checker interface.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type namedChecker struct {
	name    string
	checker Checker
}

// Handler handles health check operations.
type Handler struct {
	checks  []namedChecker
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a health handler without any checks.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{timeout: defaultTimeout, logger: logger}
}

// Add registers a dependency under name. Checks run in registration order.
func (h *Handler) Add(name string, checker Checker) *Handler {
	h.checks = append(h.checks, namedChecker{name: name, checker: checker})

	return h
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status string            `example:"ok" json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// Check pings every registered dependency.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = StatusOK
	resp.Body.Checks = make(map[string]string, len(h.checks))

	for _, c := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.checker.Ping(pingCtx)

		cancel()

		if err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", c.name), zap.Error(err))
			resp.Body.Checks[c.name] = unhealthy
			resp.Body.Status = StatusDegraded

			continue
		}

		resp.Body.Checks[c.name] = healthy
	}

	return resp, nil
}

// RegisterRoutes registers health check routes outside the burst throttle.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
