// Package cache provides caching implementations for abhiyaan report results.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/abhiyaanhq/abhiyaan"
)

// Compile-time interface check.
var _ abhiyaan.Cache = (*Memory)(nil)

// Memory is an in-memory key/value cache with per-entry TTL expiration and
// prefix invalidation. Cached values are derived, re-computable data, so a
// simple last-write-wins policy is sufficient under concurrency.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	maxSize    int
}

type entry struct {
	value     any
	writtenAt time.Time
	ttl       time.Duration
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithDefaultTTL sets the ttl applied when Set is called with a
// non-positive ttl.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.defaultTTL = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:    make(map[string]*entry),
		defaultTTL: 10 * time.Minute,
		maxSize:    10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached value for key. The entry must be younger than both
// its own ttl and the caller-supplied maxAge; expired entries are treated as
// absent, not stale-but-usable.
func (m *Memory) Get(_ context.Context, key string, maxAge time.Duration) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	age := time.Since(e.writtenAt)
	if age >= e.ttl {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	if age >= maxAge {
		// Valid for a more tolerant caller, too old for this one.
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl falls back to the
// configured default.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		value:     value,
		writtenAt: time.Now(),
		ttl:       ttl,
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

// Clear removes every entry.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// Len returns the current number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	for k, e := range m.entries {
		if time.Since(e.writtenAt) >= e.ttl {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
