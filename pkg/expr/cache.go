package expr

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the parse cache capacity engines start with.
const DefaultCacheSize = 1000

// ParseCache is a strict LRU of parse results keyed by the exact source
// text. Whitespace is significant in keys.
type ParseCache struct {
	cache  *lru.Cache[string, ParseResult]
	size   atomic.Int64
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewParseCache creates a cache holding at most size entries.
func NewParseCache(size int) (*ParseCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, ParseResult](size)
	if err != nil {
		return nil, err
	}
	pc := &ParseCache{cache: c}
	pc.size.Store(int64(size))
	return pc, nil
}

// Get returns a copy of the cached result and promotes the entry.
func (c *ParseCache) Get(code string) (ParseResult, bool) {
	r, ok := c.cache.Get(code)
	if !ok {
		c.misses.Add(1)
		return ParseResult{}, false
	}
	c.hits.Add(1)
	return r.Clone(), true
}

// Put stores a copy of r, evicting the least recently used entry when full.
func (c *ParseCache) Put(code string, r ParseResult) {
	c.cache.Add(code, r.Clone())
}

// Contains reports whether code is cached without promoting it.
func (c *ParseCache) Contains(code string) bool {
	return c.cache.Contains(code)
}

// Resize changes the capacity and returns how many entries were evicted.
func (c *ParseCache) Resize(size int) int {
	if size <= 0 {
		size = 1
	}
	c.size.Store(int64(size))
	return c.cache.Resize(size)
}

// MaxSize returns the capacity.
func (c *ParseCache) MaxSize() int {
	return int(c.size.Load())
}

// Len returns the number of entries.
func (c *ParseCache) Len() int {
	return c.cache.Len()
}

// Keys returns the cached source strings from oldest to newest.
func (c *ParseCache) Keys() []string {
	return c.cache.Keys()
}

// Clear drops every entry.
func (c *ParseCache) Clear() {
	c.cache.Purge()
}

// Stats returns the hit and miss counters.
func (c *ParseCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
