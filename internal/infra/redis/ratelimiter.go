package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 10
	backoffStep              = 25 * time.Millisecond
	backoffMax               = 200 * time.Millisecond
	windowSeconds            = 1
	rateLimitKeyPrefix       = "newsletter:ratelimit"
)

// allowScript counts calls in a one-second window and reports whether the
// current call fits in the budget.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*BackendRateLimiter)(nil)

// BackendRateLimiter is a fixed-window limiter shared across processes that
// call the same provider account. A zero limit disables throttling.
type BackendRateLimiter struct {
	client      goredis.Scripter
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewBackendRateLimiter(client goredis.Scripter, limitPerSec int) (*BackendRateLimiter, error) {
	return newBackendRateLimiter(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newBackendRateLimiter(
	client goredis.Scripter,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*BackendRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec < 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &BackendRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *BackendRateLimiter) Allow(ctx context.Context, backend string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		return false, fmt.Errorf("backend name is required")
	}
	if r.limitPerSec == 0 {
		return true, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, name, r.now().UTC().Unix())
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until a call is allowed or ctx ends.
func (r *BackendRateLimiter) Wait(ctx context.Context, backend string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, backend)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
