package catalog

import (
	"container/list"
	"context"
	"sync"

	"github.com/javanhut/castore/internal/storepath"
)

// defaultCacheSize bounds the number of memoized lookups an InfoCache
// retains before evicting the least recently used.
const defaultCacheSize = 1024

// InfoCache memoizes GetPathInfo results in front of a Catalog, so hot
// paths (a closure's shared dependencies, repeated validity checks during
// ingestion) don't hit SQLite on every lookup. Misses are cached too: "not
// registered" is as common an answer as a hit while a closure streams in.
//
// The cache only observes writes that go through its own InsertValidPaths;
// a catalog shared with another process can register paths behind its back,
// so negative entries are dropped whenever InsertValidPaths runs.
type InfoCache struct {
	c   *Catalog
	max int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key  string
	info *ValidPathInfo // nil records a miss
}

// NewInfoCache wraps c with an LRU memo of at most max entries; max <= 0
// selects a reasonable default.
func NewInfoCache(c *Catalog, max int) *InfoCache {
	if max <= 0 {
		max = defaultCacheSize
	}
	return &InfoCache{
		c:       c,
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// GetPathInfo behaves like Catalog.GetPathInfo, consulting the memo first.
func (ic *InfoCache) GetPathInfo(ctx context.Context, p storepath.StorePath) (*ValidPathInfo, error) {
	key := p.String()

	ic.mu.Lock()
	if el, ok := ic.entries[key]; ok {
		ic.order.MoveToFront(el)
		info := el.Value.(*cacheEntry).info
		ic.mu.Unlock()
		return info, nil
	}
	ic.mu.Unlock()

	info, err := ic.c.GetPathInfo(ctx, p)
	if err != nil {
		return nil, err
	}
	ic.store(key, info)
	return info, nil
}

// InsertValidPaths registers infos through the underlying catalog, then
// updates the memo: inserted paths are evicted so the next lookup reads the
// fresh row, and every negative entry is dropped (an inserted closure may
// have satisfied lookups that previously missed).
func (ic *InfoCache) InsertValidPaths(ctx context.Context, infos []ValidPathInfo) error {
	if err := ic.c.InsertValidPaths(ctx, infos); err != nil {
		return err
	}

	ic.mu.Lock()
	var stale []string
	for key, el := range ic.entries {
		if el.Value.(*cacheEntry).info == nil {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		ic.order.Remove(ic.entries[key])
		delete(ic.entries, key)
	}
	for i := range infos {
		ic.evictOne(infos[i].StorePath.String())
	}
	ic.mu.Unlock()
	return nil
}

func (ic *InfoCache) store(key string, info *ValidPathInfo) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if el, ok := ic.entries[key]; ok {
		el.Value.(*cacheEntry).info = info
		ic.order.MoveToFront(el)
		return
	}
	ic.entries[key] = ic.order.PushFront(&cacheEntry{key: key, info: info})
	for ic.order.Len() > ic.max {
		oldest := ic.order.Back()
		ic.order.Remove(oldest)
		delete(ic.entries, oldest.Value.(*cacheEntry).key)
	}
}

// evictOne drops a single key under ic.mu, forcing the next lookup through
// to the catalog for the freshly written row.
func (ic *InfoCache) evictOne(key string) {
	if el, ok := ic.entries[key]; ok {
		ic.order.Remove(el)
		delete(ic.entries, key)
	}
}
