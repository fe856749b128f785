package accesspass

import (
	"context"
	"sync"
	"time"
)

// Memory is the process-local pass store.
type Memory struct {
	mu     sync.RWMutex
	passes map[string]Pass

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemory creates an in-memory pass store. If sweepEvery > 0, expired
// passes are periodically removed; Check also expires lazily.
func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{
		passes: make(map[string]Pass),
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	if sweepEvery > 0 {
		go m.sweepLoop(sweepEvery)
	}

	return m
}

func (m *Memory) Grant(ctx context.Context, wallet string, duration time.Duration, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.passes[normalizeWallet(wallet)] = Pass{
		Tier:      tier,
		ExpiresAt: m.now().Add(duration),
	}
	return nil
}

func (m *Memory) Check(ctx context.Context, wallet string) (Pass, bool, error) {
	key := normalizeWallet(wallet)

	m.mu.Lock()
	defer m.mu.Unlock()

	pass, ok := m.passes[key]
	if !ok {
		return Pass{}, false, nil
	}

	if m.now().After(pass.ExpiresAt) {
		delete(m.passes, key)
		return Pass{}, false, nil
	}

	return pass, true, nil
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
	for wallet, pass := range m.passes {
		if now.After(pass.ExpiresAt) {
			delete(m.passes, wallet)
		}
	}
}

func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}
