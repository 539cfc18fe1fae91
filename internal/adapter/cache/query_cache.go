package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"smartfind/internal/domain"
	"smartfind/internal/port"
)

// QueryCache is a small LRU of search results with a TTL. Invalidate bumps
// a generation counter so results computed before an index change are
// never served after it.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.SearchHit
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(source domain.Source, query string, topK int) string {
	data := []byte(source)
	data = append(data, 0)
	data = append(data, query...)
	data = append(data, 0)
	data = strconv.AppendInt(data, int64(topK), 10)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(source domain.Source, query string, topK int) ([]domain.SearchHit, bool) {
	key := cacheKey(source, query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return append([]domain.SearchHit(nil), entry.results...), true
}

func (c *QueryCache) Put(source domain.Source, query string, topK int, results []domain.SearchHit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(source, query, topK)
	entry := &cacheEntry{
		results:   append([]domain.SearchHit(nil), results...),
		timestamp: c.now(),
		indexGen:  c.indexGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedRetriever serves repeated queries of one backend from the cache.
type CachedRetriever struct {
	retriever port.Retriever
	source    domain.Source
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, source domain.Source, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		source:    source,
		cache:     cache,
	}
}

func (r *CachedRetriever) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if results, hit := r.cache.Get(r.source, query, k); hit {
		return results, nil
	}

	results, err := r.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	r.cache.Put(r.source, query, k, results)
	return results, nil
}
