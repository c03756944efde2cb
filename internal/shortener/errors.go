package shortener

import (
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrAuthRequired     = errors.New("authentication required")
	ErrAliasTaken       = errors.New("short id is already taken")
	ErrIDSpaceExhausted = errors.New("could not allocate a free short id")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrNotFound         = errors.New("shortened link not found")

	// ErrAlreadyExists is returned by a Repository when the short id is in use.
	ErrAlreadyExists = errors.New("short id already exists")
)

// RateLimitError reports an exhausted daily quota. It matches ErrRateLimited.
type RateLimitError struct {
	Scope      ratelimit.Scope
	Limit      int64
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %d %s requests per day", ErrRateLimited, e.Limit, e.Scope)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
