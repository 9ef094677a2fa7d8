package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultBucketWidth is the time-normalization granularity: every
// computation anchors "now" to the start of the current bucket so a list
// view and a detail view moments apart read identical numbers.
const DefaultBucketWidth = 5 * time.Minute

// BucketStart truncates t to the start of its bucket.
func BucketStart(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		width = DefaultBucketWidth
	}
	return t.Truncate(width)
}

// Key builds a cache key from the operation and its parameters plus the
// bucket start. Two requests in the same bucket share a key.
func Key(op string, bucket time.Time, params ...string) string {
	parts := append([]string{op, bucket.UTC().Format(time.RFC3339)}, params...)
	return strings.Join(parts, "|")
}

// entry is one cached computation.
type entry struct {
	key        string
	value      any
	computedAt time.Time
	expiresAt  time.Time
}

// ResultCache is a bounded in-process memoization store: LRU by capacity
// and TTL by age, whichever triggers first. A singleflight group ensures
// at most one computation runs per key; concurrent callers in the same
// bucket share the result.
type ResultCache struct {
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
	group   singleflight.Group
	mu      sync.Mutex

	hits   int64
	misses int64
}

// New creates a cache holding at most maxSize entries.
func New(maxSize int) *ResultCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &ResultCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Do returns the cached value for key or runs compute exactly once for
// all concurrent callers, storing the result until expiresAt. Errors are
// never cached; the next caller recomputes.
func (c *ResultCache) Do(key string, expiresAt time.Time, compute func() (any, error)) (any, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a racing caller may have stored it.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.put(key, v, expiresAt)
		return v, nil
	})
	return v, err
}

func (c *ResultCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

func (c *ResultCache) put(key string, value any, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{key: key, value: value, computedAt: time.Now(), expiresAt: expiresAt}
	if el, ok := c.items[key]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return
	}
	c.items[key] = c.lru.PushFront(e)
	for len(c.items) > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

// Clean removes expired entries. The janitor calls this on a schedule so
// rolled-over buckets do not linger until LRU pressure evicts them.
func (c *ResultCache) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		if now.After(el.Value.(*entry).expiresAt) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		c.removeElement(el)
	}
}

// Size returns the current entry count.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports hit/miss counters and occupancy.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.items),
		MaxSize: c.maxSize,
	}
}

// removeElement must be called with the mutex held.
func (c *ResultCache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.lru.Remove(el)
}

// Stats describes cache effectiveness.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
	MaxSize int   `json:"max_size"`
}
