package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

// Throttle rejects bursts from a single client with 429. Operations whose
// metadata disables rate limiting are passed through.
func Throttle(api huma.API, limiter ratelimit.Limiter, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if cfg := ratelimit.GetEndpointConfig(ctx); cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		allowed, err := limiter.Allow(ctx.Context(), clientKey(ctx))
		if err != nil {
			logger.Error("throttle check failed", zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if !allowed {
			logger.Warn("request throttled",
				zap.String("method", ctx.Method()),
				zap.String("path", ctx.URL().Path),
				zap.String("client_ip", throttledIP(ctx)),
			)
			ctx.SetHeader("Retry-After", "1")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "too many requests")

			return
		}

		next(ctx)
	}
}

// clientKey identifies a client by IP and user-agent.
func clientKey(ctx huma.Context) string {
	sum := sha256.Sum256([]byte(throttledIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(sum[:])
}

// throttledIP is the address resolved by RequestMetaMiddleware, or the peer
// address when that middleware did not run.
func throttledIP(ctx huma.Context) string {
	if ip := RequestMetaFromContext(ctx.Context()).ClientIP; ip != "" {
		return ip
	}

	return peerIP(ctx)
}
