package satchel

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// queryCache memoizes FindPage results. Keys embed the table revision, so a
// mutation makes every older entry unreachable and ordinary LRU eviction
// reclaims it; there is no explicit invalidation.
type queryCache struct {
	lru    *lru.Cache
	hits   int64
	misses int64
}

// CacheStats provides query cache statistics.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

func newQueryCache(size int) *queryCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New(size)
	if err != nil {
		return nil
	}
	return &queryCache{lru: c}
}

func cacheKey(path string, rev uint64, q *Query) string {
	return fmt.Sprintf("%s@%d:%s", path, rev, q.fingerprint())
}

func (c *queryCache) get(key string) (*Page, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return v.(*Page), true
}

func (c *queryCache) put(key string, page *Page) {
	if c == nil {
		return
	}
	c.lru.Add(key, page)
}

func (c *queryCache) stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: c.lru.Len(),
	}
}

// clonePage deep-copies a page so cached results stay immutable.
func clonePage(p *Page) *Page {
	out := &Page{
		Documents:  make([]Document, len(p.Documents)),
		Total:      p.Total,
		NextCursor: p.NextCursor,
		PrevCursor: p.PrevCursor,
	}
	for i, doc := range p.Documents {
		out.Documents[i] = doc.Clone()
	}
	return out
}
