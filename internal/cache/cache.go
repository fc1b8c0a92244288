// Package cache holds the latest inference result for the serving shell.
package cache

import (
	"context"
	"sync"
	"time"

	"station-forecast-lab/internal/domain"
)

// DefaultTTL is how long a result is served before inference runs again.
const DefaultTTL = 15 * time.Minute

// Entry is one cached inference result.
type Entry struct {
	Predictions []*domain.Prediction `json:"predictions"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Cache stores at most one result.
type Cache interface {
	// Get returns the cached entry. ok is false when the cache is empty or expired.
	Get(ctx context.Context) (entry *Entry, ok bool, err error)

	// Set replaces the cached entry.
	Set(ctx context.Context, entry *Entry) error
}

// Memory is an in-process Cache.
type Memory struct {
	mu    sync.RWMutex
	entry *Entry
	ttl   time.Duration
	now   func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a Memory cache. ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now}
}

// WithClock sets a custom clock for deterministic expiry.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get returns the entry while it is younger than the TTL.
func (m *Memory) Get(_ context.Context) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil || !m.now().Before(m.entry.GeneratedAt.Add(m.ttl)) {
		return nil, false, nil
	}
	return m.entry, true, nil
}

// Set replaces the entry.
func (m *Memory) Set(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = entry
	return nil
}
