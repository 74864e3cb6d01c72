package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipeline-oracle/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Entry is the outcome of a memo lookup.
type Entry struct {
	Key   string
	Value []byte
	// Hit is true when the value came from the cache rather than a fresh computation.
	Hit bool
	// Stale is true when the value belongs to an older fingerprint of the same group.
	Stale bool
}

// Memo runs at most one live computation per key and remembers the latest value per
// group (a requisition) so it can be served when a fresh computation fails.
type Memo struct {
	provider Provider
	ttl      time.Duration
	staleTTL time.Duration
	group    singleflight.Group
}

// NewMemo wraps a provider. Stale values are retained for staleTTL (zero keeps them until
// evicted by the provider).
func NewMemo(provider Provider, ttl, staleTTL time.Duration) *Memo {
	if provider == nil {
		provider = NoopProvider{}
	}
	return &Memo{provider: provider, ttl: ttl, staleTTL: staleTTL}
}

func staleKey(group string) string {
	return "stale-" + group
}

// Do returns the cached value for key or computes it. Concurrent callers with the same key
// share one computation.
func (m *Memo) Do(ctx context.Context, group, key string, compute func(context.Context) ([]byte, error)) (Entry, error) {
	if v, err := m.provider.Get(ctx, key); err == nil {
		metrics.ObserveCacheLookup(metrics.CacheHit)
		return Entry{Key: key, Value: v, Hit: true}, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed, recomputing")
	}
	metrics.ObserveCacheLookup(metrics.CacheMiss)

	res, err, shared := m.group.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := m.provider.Set(ctx, key, v, m.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to store forecast in cache")
		}
		if group != "" {
			_ = m.provider.Set(ctx, staleKey(group), v, m.staleTTL)
		}
		return v, nil
	})
	if err == nil {
		log.Debug().Str("key", key).Bool("shared", shared).Msg("Forecast computed")
		return Entry{Key: key, Value: res.([]byte)}, nil
	}

	if group != "" {
		if v, serr := m.provider.Get(ctx, staleKey(group)); serr == nil {
			metrics.ObserveCacheLookup(metrics.CacheStale)
			log.Warn().Err(err).Str("group", group).Msg("Serving stale forecast")
			return Entry{Key: key, Value: v, Stale: true}, nil
		}
	}
	return Entry{}, fmt.Errorf("compute %s: %w", key, err)
}

// Latest returns the most recent value computed for a group, regardless of fingerprint.
func (m *Memo) Latest(ctx context.Context, group string) ([]byte, error) {
	return m.provider.Get(ctx, staleKey(group))
}

// Invalidate drops a key and the group's stale value.
func (m *Memo) Invalidate(ctx context.Context, group, key string) error {
	if err := m.provider.Del(ctx, key); err != nil {
		return err
	}
	if group == "" {
		return nil
	}
	return m.provider.Del(ctx, staleKey(group))
}
