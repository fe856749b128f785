package accesspass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainfeed/gateway/internal/storage"
)

// Redis stores passes as JSON values with a TTL matching the pass duration,
// so expiry is handled by redis itself and shared across processes.
type Redis struct {
	redis *storage.RedisClient
}

func NewRedis(redis *storage.RedisClient) *Redis {
	return &Redis{redis: redis}
}

func passKey(wallet string) string {
	return fmt.Sprintf("accesspass:%s", normalizeWallet(wallet))
}

func (r *Redis) Grant(ctx context.Context, wallet string, duration time.Duration, tier string) error {
	pass := Pass{
		Tier:      tier,
		ExpiresAt: time.Now().Add(duration),
	}

	payload, err := json.Marshal(pass)
	if err != nil {
		return fmt.Errorf("failed to encode access pass: %w", err)
	}

	// SET replaces any prior pass for the wallet, including its TTL.
	return r.redis.Set(ctx, passKey(wallet), payload, duration)
}

func (r *Redis) Check(ctx context.Context, wallet string) (Pass, bool, error) {
	raw, err := r.redis.Get(ctx, passKey(wallet))
	if errors.Is(err, redis.Nil) {
		return Pass{}, false, nil
	}
	if err != nil {
		return Pass{}, false, fmt.Errorf("access pass lookup failed: %w", err)
	}

	var pass Pass
	if err := json.Unmarshal([]byte(raw), &pass); err != nil {
		return Pass{}, false, fmt.Errorf("failed to decode access pass: %w", err)
	}

	if time.Now().After(pass.ExpiresAt) {
		_ = r.redis.Del(ctx, passKey(wallet))
		return Pass{}, false, nil
	}

	return pass, true, nil
}
