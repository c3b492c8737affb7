package agent

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces classifier calls.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows burst calls at once and perMinute calls per minute
// after that. Non-positive values fall back to 10 and 30.
func NewRateLimiter(burst int, perMinute float64) *RateLimiter {
	if burst <= 0 {
		burst = 10
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
