// Package cache keeps recent superhero API responses in memory.
// It is never the source of truth; entries expire and misses go upstream.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// Source is the upstream the cache reads through.
type Source interface {
	LookupRaw(ctx context.Context, id string) ([]byte, error)
	SearchRaw(ctx context.Context, name string) ([]byte, error)
}

// UpstreamCache serves repeated lookups and searches without spending upstream quota.
// Only successful responses are stored.
type UpstreamCache struct {
	source  Source
	entries *expirable.LRU[string, []byte]
}

// NewUpstreamCache wraps source. A size of zero or less disables caching.
func NewUpstreamCache(source Source, size int, ttl time.Duration) *UpstreamCache {
	c := &UpstreamCache{source: source}
	if size > 0 {
		c.entries = expirable.NewLRU[string, []byte](size, nil, ttl)
	}
	return c
}

// LookupRaw returns the character JSON for id.
func (c *UpstreamCache) LookupRaw(ctx context.Context, id string) ([]byte, error) {
	return c.read(ctx, "lookup", id, c.source.LookupRaw)
}

// SearchRaw returns the search JSON for name. Names differing only in case share an entry.
func (c *UpstreamCache) SearchRaw(ctx context.Context, name string) ([]byte, error) {
	return c.read(ctx, "search", strings.ToLower(strings.TrimSpace(name)), func(ctx context.Context, _ string) ([]byte, error) {
		return c.source.SearchRaw(ctx, name)
	})
}

// Len returns the number of live entries.
func (c *UpstreamCache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *UpstreamCache) read(ctx context.Context, endpoint, key string, fetch func(context.Context, string) ([]byte, error)) ([]byte, error) {
	if c.entries == nil {
		return fetch(ctx, key)
	}
	k := endpoint + ":" + key
	if body, ok := c.entries.Get(k); ok {
		metrics.RecordCacheLookup(endpoint, true)
		return body, nil
	}
	metrics.RecordCacheLookup(endpoint, false)

	body, err := fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	c.entries.Add(k, body)
	return body, nil
}
