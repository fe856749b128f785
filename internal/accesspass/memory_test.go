package accesspass

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) (*Memory, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(0)
	m.now = func() time.Time { return now }
	t.Cleanup(m.Close)

	return m, &now
}

func TestMemoryGrantAndCheck(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Grant(ctx, "0xAbC123", time.Hour, "pro"))

	pass, valid, err := m.Check(ctx, "0xAbC123")
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, "pro", pass.Tier)
}

func TestMemoryCheckIsCaseInsensitive(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Grant(ctx, "0xABCDEF", time.Hour, "pro"))

	_, valid, err := m.Check(ctx, "0xabcdef")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestMemoryExpiry(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Grant(ctx, "0xabc", 3600*time.Second, "pro"))

	*now = now.Add(3601 * time.Second)

	_, valid, err := m.Check(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, valid)

	// Expired record was lazily deleted.
	m.mu.Lock()
	assert.Empty(t, m.passes)
	m.mu.Unlock()
}

func TestMemoryGrantOverwrites(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Grant(ctx, "0xabc", 2*time.Hour, "pro"))

	*now = now.Add(time.Hour)

	// A second purchase replaces the pass outright; remaining time from the
	// first grant is not added on.
	require.NoError(t, m.Grant(ctx, "0xabc", 30*time.Minute, "pro"))

	pass, valid, err := m.Check(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, now.Add(30*time.Minute), pass.ExpiresAt)
}

func TestMemoryCheckUnknownWallet(t *testing.T) {
	m, _ := newTestMemory(t)

	_, valid, err := m.Check(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestMemorySweep(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()

	m.Grant(ctx, "0xshort", time.Minute, "pro")
	m.Grant(ctx, "0xlong", time.Hour, "pro")

	*now = now.Add(10 * time.Minute)
	m.sweep()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.passes, "0xshort")
	assert.Contains(t, m.passes, "0xlong")
}
