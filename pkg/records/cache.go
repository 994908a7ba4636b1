package records

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default bound for the resolver caches.
const DefaultCacheSize = 1024

// CachedResolver fronts a Resolver with bounded LRU caches for records and
// file objects. Sibling lookups are not cached: the reconciler calls them
// once per family per run and staleness there would mask new versions.
type CachedResolver struct {
	inner   Resolver
	records *lru.Cache[string, *Record]
	files   *lru.Cache[string, *FileObject]
}

// NewCachedResolver wraps inner with caches holding up to size entries each.
func NewCachedResolver(inner Resolver, size int) (*CachedResolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	recs, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	files, err := lru.New[string, *FileObject](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}

	return &CachedResolver{inner: inner, records: recs, files: files}, nil
}

// Resolve returns the record with the given id, consulting the cache first.
// Negative results are not cached; a deleted record should stay resolvable
// again if it is restored.
func (c *CachedResolver) Resolve(ctx context.Context, id string) (*Record, error) {
	if rec, ok := c.records.Get(id); ok {
		return rec, nil
	}

	rec, err := c.inner.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	c.records.Add(id, rec)
	return rec, nil
}

// ResolveFile returns the named file object, consulting the cache first.
func (c *CachedResolver) ResolveFile(ctx context.Context, id, filename string) (*FileObject, error) {
	key := id + "/" + filename
	if f, ok := c.files.Get(key); ok {
		return f, nil
	}

	f, err := c.inner.ResolveFile(ctx, id, filename)
	if err != nil {
		return nil, err
	}
	c.files.Add(key, f)
	return f, nil
}

// Siblings delegates to the wrapped resolver.
func (c *CachedResolver) Siblings(ctx context.Context, familyID string) ([]*Record, error) {
	return c.inner.Siblings(ctx, familyID)
}
