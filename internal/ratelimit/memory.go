package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// Memory is the in-process limiter. Check-and-increment runs under a single
// lock so concurrent requests against one identifier can never race past the
// limit. State is process-local; use the Redis limiter for shared quotas.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemory creates an in-memory limiter. If sweepEvery > 0 a background
// sweeper removes expired windows to bound memory; expiry itself is handled
// lazily on Check, so the cadence only matters for hygiene.
func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if sweepEvery > 0 {
		go m.sweepLoop(sweepEvery)
	}

	return m
}

func (m *Memory) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	if limit == Unlimited {
		return Result{Allowed: true, Remaining: Unlimited}, nil
	}

	// A non-positive limit grants nothing; don't let the fresh-window path
	// admit the first call.
	if limit <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetAt: m.now().Add(window)}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	w, ok := m.windows[identifier]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{count: 1, resetAt: now.Add(window)}
		m.windows[identifier] = w
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= limit {
		// Rejected requests don't advance the counter.
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

func (m *Memory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, id)
		}
	}
}

func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}
