package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainfeed/gateway/internal/storage"
)

// checkScript performs the whole check-and-increment server-side so
// concurrent gateway processes share one atomic counter per identifier.
// Returns {allowed, count, pttl}.
var checkScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return {0, tonumber(current), redis.call('PTTL', KEYS[1])}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// Redis is the shared-store limiter for multi-process deployments.
type Redis struct {
	redis *storage.RedisClient
}

func NewRedis(redis *storage.RedisClient) *Redis {
	return &Redis{redis: redis}
}

func (r *Redis) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	if limit == Unlimited {
		return Result{Allowed: true, Remaining: Unlimited}, nil
	}

	// A non-positive limit grants nothing; the script's INCR path would
	// otherwise admit the first call of each window.
	if limit <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(window)}, nil
	}

	key := fmt.Sprintf("ratelimit:%s", identifier)

	raw, err := checkScript.Run(ctx, r.redis.Client(), []string{key}, limit, window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(raw))
	}

	allowed := raw[0].(int64) == 1
	count := int(raw[1].(int64))
	pttl := raw[2].(int64)

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(window)
	if pttl > 0 {
		resetAt = time.Now().Add(time.Duration(pttl) * time.Millisecond)
	}

	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}, nil
}
