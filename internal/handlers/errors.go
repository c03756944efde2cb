package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// linkError translates a shortener error into an HTTP problem.
func linkError(err error, logger *zap.Logger) error {
	var limited *shortener.RateLimitError

	switch {
	case errors.As(err, &limited):
		return rateLimited(limited)
	case errors.Is(err, shortener.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrAuthRequired):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, shortener.ErrAliasTaken):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, shortener.ErrIDSpaceExhausted):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	}

	logger.Error("request failed", zap.Error(err))

	return huma.Error500InternalServerError("internal error")
}

// rateLimited answers 403 for the creation quota and 429 for everything else.
func rateLimited(err *shortener.RateLimitError) error {
	status := http.StatusTooManyRequests
	if err.Scope == ratelimit.ScopeCreation {
		status = http.StatusForbidden
	}

	headers := http.Header{}
	headers.Set("Retry-After", retryAfterSeconds(err.RetryAfter))

	return huma.ErrorWithHeaders(huma.NewError(status, err.Error()), headers)
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	return strconv.FormatInt(seconds, 10)
}
