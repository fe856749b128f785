package ratelimit

import (
	"context"
	"time"
)

// Unlimited disables counting for a check.
const Unlimited = -1

// Result is the outcome of a fixed-window check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per identifier in fixed windows. Limit and window
// are per-call parameters: the same limiter serves 60-second payment bursts
// and 24-hour subscription quotas. Identifiers carry their own namespace
// prefix ("apikey:..." or "wallet:...") so the two spaces never collide.
type Limiter interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error)
}
