package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

type cacheEntry struct {
	chain Chain
	err   error
}

// CachedChainSource memoises the most recently loaded days. Missing days are
// cached too, so a run asks the backing source once per date.
type CachedChainSource struct {
	mu      sync.RWMutex
	source  ChainSource
	maxDays int
	entries map[string]cacheEntry
	order   []string
}

// NewCachedChainSource wraps source, keeping at most maxDays days in memory.
func NewCachedChainSource(source ChainSource, maxDays int) *CachedChainSource {
	if maxDays < 1 {
		maxDays = 1
	}
	return &CachedChainSource{
		source:  source,
		maxDays: maxDays,
		entries: make(map[string]cacheEntry),
	}
}

// LoadDay returns the cached chain or loads it from the wrapped source.
func (c *CachedChainSource) LoadDay(ctx context.Context, date time.Time) (Chain, error) {
	key := date.Format("2006-01-02")

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.chain, e.err
	}

	chain, err := c.source.LoadDay(ctx, date)
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.chain, e.err
	}
	c.entries[key] = cacheEntry{chain: chain, err: err}
	c.order = append(c.order, key)
	for len(c.order) > c.maxDays {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	return chain, err
}

// Len returns the number of cached days.
func (c *CachedChainSource) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
