// Package accesspass tracks time-bounded entitlements purchased by wallets.
// A pass permits elevated request rates until it expires.
package accesspass

import (
	"context"
	"strings"
	"time"
)

type Pass struct {
	Tier      string    `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store holds at most one pass per wallet. Granting while an unexpired pass
// exists overwrites it outright; remaining time is not carried over.
type Store interface {
	Grant(ctx context.Context, wallet string, duration time.Duration, tier string) error

	// Check returns the pass for wallet, or ok=false if none exists or it
	// has expired. Expired records are deleted on the way out.
	Check(ctx context.Context, wallet string) (Pass, bool, error)
}

// Wallet addresses are hex and compared case-insensitively everywhere.
func normalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}
