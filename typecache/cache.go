// Package typecache caches generated proxy types by structural key.
//
// Concurrent first requests for the same key run the create function once;
// every caller receives its result. Failed creations are never cached.
package typecache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Stats are cumulative counters of a cache.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a size-bounded LRU cache with de-duplicated creation.
// A Cache with size zero caches nothing but still de-duplicates concurrent
// creations.
type Cache[V any] struct {
	size  int
	group singleflight.Group

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element

	hits, misses, evictions atomic.Int64
}

type entry[V any] struct {
	key string
	val V
}

// New returns a cache holding at most size values.
func New[V any](size int) *Cache[V] {
	return &Cache[V]{
		size:  max(size, 0),
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get returns the cached value for key and marks it as recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[V]).val, true
	}
	var zero V
	return zero, false
}

// GetOrCreate returns the cached value for key, or calls create and caches its
// result. hit reports whether the value came from the cache. If ctx is done
// before a shared creation finishes, GetOrCreate returns ctx.Err(); the
// creation itself keeps running for the other callers.
func (c *Cache[V]) GetOrCreate(ctx context.Context, key string, create func() (V, error)) (val V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have finished between Get and DoChan.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		c.misses.Add(1)
		v, err := create()
		if err != nil {
			return nil, err
		}
		c.add(key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero V
			return zero, false, r.Err
		}
		return r.Val.(V), false, nil
	}
}

func (c *Cache[V]) add(key string, v V) {
	if c.size == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).val = v
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry[V]{key: key, val: v})
	for c.ll.Len() > c.size {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
		c.evictions.Add(1)
	}
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Keys returns the cached keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Purge removes every value.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
}

// Stats returns the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
