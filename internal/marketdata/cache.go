package marketdata

import (
	"sync"
	"time"

	"price-analyst/internal/models"
)

// Cache defaults.
const (
	DefaultIntradayTTL   = 2 * time.Minute
	DefaultDailyTTL      = 5 * time.Minute
	DefaultCacheCapacity = 50
)

// Cache stores recently fetched series by symbol and range.
type Cache interface {
	Get(symbol string, tag models.RangeTag) (*models.Series, bool)
	Set(symbol string, tag models.RangeTag, series *models.Series)
	Clear()
}

type cacheKey struct {
	symbol string
	tag    models.RangeTag
}

type cacheEntry struct {
	series    *models.Series
	fetchedAt time.Time
	seq       uint64
}

type insertion struct {
	key cacheKey
	seq uint64
}

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// MemoryCache is a bounded in-memory cache with per-class TTLs. Expired
// entries are dropped lazily on read. When full, the entry inserted earliest
// is evicted; setting an existing key counts as a fresh insertion.
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[cacheKey]*cacheEntry
	order       []insertion
	seq         uint64
	capacity    int
	intradayTTL time.Duration
	dailyTTL    time.Duration
	now         func() time.Time
	hits        int64
	misses      int64
}

// CacheOption configures a MemoryCache.
type CacheOption func(*MemoryCache)

// WithTTL sets the intraday and daily time-to-live.
func WithTTL(intraday, daily time.Duration) CacheOption {
	return func(c *MemoryCache) {
		if intraday > 0 {
			c.intradayTTL = intraday
		}
		if daily > 0 {
			c.dailyTTL = daily
		}
	}
}

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) CacheOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithCacheClock sets the clock used for expiry.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(opts ...CacheOption) *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[cacheKey]*cacheEntry),
		capacity:    DefaultCacheCapacity,
		intradayTTL: DefaultIntradayTTL,
		dailyTTL:    DefaultDailyTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) ttl(tag models.RangeTag) time.Duration {
	if tag.Intraday() {
		return c.intradayTTL
	}
	return c.dailyTTL
}

// Get returns the cached series when it is younger than its TTL.
func (c *MemoryCache) Get(symbol string, tag models.RangeTag) (*models.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{symbol, tag}
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl(tag) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.series, true
}

// Set stores series under (symbol, tag), evicting the oldest insertion when
// the cache is full.
func (c *MemoryCache) Set(symbol string, tag models.RangeTag, series *models.Series) {
	if series == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{symbol, tag}
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.capacity && c.evictOldest() {
		}
	}
	c.seq++
	c.entries[key] = &cacheEntry{series: series, fetchedAt: c.now(), seq: c.seq}
	c.order = append(c.order, insertion{key, c.seq})
	if len(c.order) > 2*c.capacity {
		c.compact()
	}
}

// compact drops stale insertion records.
func (c *MemoryCache) compact() {
	live := c.order[:0]
	for _, in := range c.order {
		if e, ok := c.entries[in.key]; ok && e.seq == in.seq {
			live = append(live, in)
		}
	}
	c.order = live
}

// evictOldest removes the earliest live insertion. order may hold stale
// records left behind by re-insertion and lazy expiry; they are skipped.
func (c *MemoryCache) evictOldest() bool {
	for len(c.order) > 0 {
		head := c.order[0]
		c.order = c.order[1:]
		if e, ok := c.entries[head.key]; ok && e.seq == head.seq {
			delete(c.entries, head.key)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*cacheEntry)
	c.order = nil
}

// Len returns the number of stored entries, expired ones included until read.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
