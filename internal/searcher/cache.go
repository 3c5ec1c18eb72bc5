package searcher

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// DefaultCacheTTL is the entry lifetime used when EnableQueryCache is given
// a non-positive TTL.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry holds one cached result list with its expiration time.
type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// queryCache is a TTL-bounded LRU of query results. Entries are copied on
// both put and get so callers can never mutate cached state.
type queryCache struct {
	mu  sync.Mutex
	lru *lru.Cache[[32]byte, *cacheEntry]
	ttl time.Duration
}

// EnableQueryCache turns on result caching with the given capacity and TTL.
// The cache is purely an optimization: results served from it are copies of
// what Search produced, and a disabled cache changes no observable ranking
// behavior.
func (s *Searcher) EnableQueryCache(size int, ttl time.Duration) error {
	if size <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", size)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := lru.New[[32]byte, *cacheEntry](size)
	if err != nil {
		return fmt.Errorf("create query cache: %w", err)
	}
	s.cache = &queryCache{lru: cache, ttl: ttl}
	return nil
}

// InvalidateCache drops all cached query results. Called after ingest and
// reindex so stale rankings are never served. No-op when the cache is
// disabled.
func (s *Searcher) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cache.mu.Lock()
	s.cache.lru.Purge()
	s.cache.mu.Unlock()
}

func (c *queryCache) get(query string, topK int) ([]types.SearchResult, bool) {
	key := cacheKey(query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return copyResults(entry.results), true
}

func (c *queryCache) put(query string, topK int, results []types.SearchResult) {
	entry := &cacheEntry{
		results:   copyResults(results),
		expiresAt: time.Now().Add(c.ttl),
	}

	c.mu.Lock()
	c.lru.Add(cacheKey(query, topK), entry)
	c.mu.Unlock()
}

func cacheKey(query string, topK int) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%d", query, topK)))
}

// copyResults deep-copies a result list, including the optional ChunkRef.
func copyResults(src []types.SearchResult) []types.SearchResult {
	dst := make([]types.SearchResult, len(src))
	copy(dst, src)
	for i := range dst {
		if dst[i].Chunk != nil {
			ref := *dst[i].Chunk
			dst[i].Chunk = &ref
		}
	}
	return dst
}
