// Package cache holds resolved share listings for a short time so repeated
// requests for the same link skip the upstream negotiation.
package cache

import (
	"time"

	"github.com/Xhofe/go-cache"

	"teralink/internal"
)

// entry is immutable once stored
type entry struct {
	files     []internal.ResolvedFile
	expiresAt time.Time
}

// MemoryCache is a sharded in-process cache. Expired entries are treated as
// misses on read and are not swept proactively.
type MemoryCache struct {
	store cache.ICache[entry]
	now   func() time.Time
}

var _ internal.ResultCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache with the given shard count
func NewMemoryCache(shards int) *MemoryCache {
	if shards < 1 {
		shards = 1
	}
	return &MemoryCache{
		store: cache.NewMemCache(cache.WithShards[entry](shards)),
		now:   time.Now,
	}
}

// Get returns the stored files for key, or false when absent or expired
func (c *MemoryCache) Get(key string) ([]internal.ResolvedFile, bool) {
	e, ok := c.store.Get(key)
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return cloneFiles(e.files), true
}

// Put stores a copy of files under key; the last write wins. A ttl <= 0 stores nothing.
func (c *MemoryCache) Put(key string, files []internal.ResolvedFile, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.store.Set(key, entry{
		files:     cloneFiles(files),
		expiresAt: c.now().Add(ttl),
	}, cache.WithEx[entry](ttl))
}

func cloneFiles(files []internal.ResolvedFile) []internal.ResolvedFile {
	out := make([]internal.ResolvedFile, len(files))
	for i, f := range files {
		out[i] = f
		if f.Thumbnails != nil {
			thumbs := make(map[string]string, len(f.Thumbnails))
			for k, v := range f.Thumbnails {
				thumbs[k] = v
			}
			out[i].Thumbnails = thumbs
		}
	}
	return out
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(string) ([]internal.ResolvedFile, bool) { return nil, false }

func (Noop) Put(string, []internal.ResolvedFile, time.Duration) {}
