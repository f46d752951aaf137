package cache

import (
	"container/list"
	"sync"
	"time"
)

// =============================================================================
// L1 Cache - In-Memory LRU with TTL
// =============================================================================

// L1Cache is a bounded in-memory cache that sits in front of Redis (L2).
// Expired entries are dropped lazily on access or when evicting.
type L1Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxItems   int
	defaultTTL time.Duration
	maxTTL     time.Duration

	hits   int64
	misses int64

	now func() time.Time
}

type l1Entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// L1Config configures the L1 cache.
type L1Config struct {
	MaxItems   int           // default 1000
	DefaultTTL time.Duration // used when Set is given ttl <= 0 (default 2m)
	MaxTTL     time.Duration // L1 never holds an entry longer than this (default 10m)
}

func DefaultL1Config() L1Config {
	return L1Config{
		MaxItems:   1000,
		DefaultTTL: 2 * time.Minute,
		MaxTTL:     10 * time.Minute,
	}
}

func NewL1Cache(cfg L1Config) *L1Cache {
	def := DefaultL1Config()
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = def.MaxTTL
	}
	return &L1Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxItems:   cfg.MaxItems,
		defaultTTL: cfg.DefaultTTL,
		maxTTL:     cfg.MaxTTL,
		now:        time.Now,
	}
}

// Get returns a live entry and marks it recently used.
func (c *L1Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*l1Entry)
	if !c.now().Before(entry.expiresAt) {
		c.remove(el)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Set stores value for min(ttl, MaxTTL), evicting the least recently used
// entry when full.
func (c *L1Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*l1Entry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxItems {
		c.evict()
	}
	c.items[key] = c.order.PushFront(&l1Entry{key: key, value: value, expiresAt: expiresAt})
}

func (c *L1Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

func (c *L1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counts since creation.
func (c *L1Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// evict drops an expired entry if one is found near the tail, otherwise
// the least recently used one. Caller holds mu.
func (c *L1Cache) evict() {
	now := c.now()
	el := c.order.Back()
	for i := 0; el != nil && i < 8; i++ {
		if !now.Before(el.Value.(*l1Entry).expiresAt) {
			c.remove(el)
			return
		}
		el = el.Prev()
	}
	if back := c.order.Back(); back != nil {
		c.remove(back)
	}
}

func (c *L1Cache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*l1Entry).key)
}
