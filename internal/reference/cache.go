package reference

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cacheKey struct {
	kind Kind
	code string
}

type cacheEntry struct {
	id ID
	ok bool
}

// CachedResolver memoises lookups of a slower Resolver, including misses.
// Failed lookups are not cached.
type CachedResolver struct {
	next  Resolver
	cache *expirable.LRU[cacheKey, cacheEntry]
}

// NewCachedResolver wraps next with an LRU of the given size. A zero ttl
// keeps entries until they are evicted.
func NewCachedResolver(next Resolver, size int, ttl time.Duration) *CachedResolver {
	if size <= 0 {
		size = 1024
	}
	return &CachedResolver{
		next:  next,
		cache: expirable.NewLRU[cacheKey, cacheEntry](size, nil, ttl),
	}
}

// Resolve implements Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, kind Kind, code string) (ID, bool, error) {
	key := cacheKey{kind: kind, code: NormalizeCode(code)}
	if e, hit := c.cache.Get(key); hit {
		return e.id, e.ok, nil
	}

	id, ok, err := c.next.Resolve(ctx, kind, code)
	if err != nil {
		return 0, false, err
	}
	c.cache.Add(key, cacheEntry{id: id, ok: ok})
	return id, ok, nil
}

// Purge drops every cached entry.
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached entries.
func (c *CachedResolver) Len() int {
	return c.cache.Len()
}
