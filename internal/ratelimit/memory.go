package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows as timestamp slices in a mutex-guarded map.
// Stale keys are pruned both on access and by a background sweep, so the
// map does not grow without bound across distinct IPs.
type MemoryStore struct {
	mu      sync.Mutex
	events  map[string][]time.Time
	blocks  map[string]time.Time
	now     func() time.Time
	maxSeen time.Duration
	done    chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]time.Time),
		blocks: make(map[string]time.Time),
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// StartPruning sweeps stale entries every interval until Close.
func (m *MemoryStore) StartPruning(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.prune()
			case <-m.done:
				return
			}
		}
	}()
}

func (m *MemoryStore) Close() {
	close(m.done)
}

func (m *MemoryStore) Record(_ context.Context, key string, window time.Duration) (int, error) {
	now := m.now()
	cutoff := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if window > m.maxSeen {
		m.maxSeen = window
	}

	kept := m.events[key][:0]
	for _, ts := range m.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	m.events[key] = kept
	return len(kept), nil
}

func (m *MemoryStore) Blocked(_ context.Context, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.blocks[ip]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.blocks, ip)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Block(_ context.Context, ip string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[ip] = m.now().Add(duration)
	return nil
}

func (m *MemoryStore) prune() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// The largest window observed bounds how long any event stays relevant.
	cutoff := now.Add(-m.maxSeen)
	for key, timestamps := range m.events {
		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(m.events, key)
			continue
		}
		m.events[key] = kept
	}
	for ip, until := range m.blocks {
		if now.After(until) {
			delete(m.blocks, ip)
		}
	}
}
