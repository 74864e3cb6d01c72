package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryProvider is an in-process Provider with per-key TTL. A zero TTL never expires.
type MemoryProvider struct {
	mu    sync.Mutex
	store map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		store: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// Get returns a copy of the stored bytes, or ErrCacheMiss when absent or expired.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.store[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if p.expired(e) {
		delete(p.store, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store[key] = p.entry(value, ttl)
	return nil
}

// SetNX stores value only when the key is absent or expired.
func (p *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.store[key]; ok && !p.expired(e) {
		return false, nil
	}
	p.store[key] = p.entry(value, ttl)
	return true, nil
}

// Del removes a key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.store, key)
	return nil
}

// Close drops every entry.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = make(map[string]memoryEntry)
	return nil
}

func (p *MemoryProvider) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = p.now().Add(ttl)
	}
	return e
}

func (p *MemoryProvider) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !p.now().Before(e.expires)
}
