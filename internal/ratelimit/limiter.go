package ratelimit

import "context"

// RateLimiter throttles outbound calls per campaign backend. The key is the
// backend name, so every process talking to the same provider account
// shares one budget.
type RateLimiter interface {
	Allow(ctx context.Context, backend string) (bool, error)
	Wait(ctx context.Context, backend string) error
}
