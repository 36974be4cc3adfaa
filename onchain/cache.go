package onchain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheEntries is the hot cache capacity used when none is given.
// The governance working set is a few dozen slots; 1024 leaves headroom for
// epoch-sized signer lists.
const DefaultCacheEntries = 1024

var (
	cacheHitMeter      = metrics.NewRegisteredMeter("meow/onchain/cache/hits", nil)
	cacheMissMeter     = metrics.NewRegisteredMeter("meow/onchain/cache/misses", nil)
	cacheEvictionMeter = metrics.NewRegisteredMeter("meow/onchain/cache/evictions", nil)
)

type cacheKey struct {
	addr common.Address
	slot common.Hash
}

// CacheStats is a snapshot of the cache performance counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Capacity  int
}

// HitRate returns the cache hit rate in [0, 1].
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// HotStateCache is a thread-safe LRU cache over (address, slot) → word with
// per-address invalidation. It memoizes only present values; reader-level
// misses are never inserted, so a contract populated later is still found.
type HotStateCache struct {
	mu       sync.Mutex
	entries  *lru.Cache
	capacity int

	hits      uint64
	misses    uint64
	evictions uint64
	purging   bool // suppress eviction accounting during explicit removal
}

// NewHotStateCache creates a cache with the given capacity.
func NewHotStateCache(capacity int) *HotStateCache {
	if capacity <= 0 {
		capacity = DefaultCacheEntries
	}
	c := &HotStateCache{capacity: capacity}
	entries, err := lru.NewWithEvict(capacity, func(interface{}, interface{}) {
		if !c.purging {
			c.evictions++
			cacheEvictionMeter.Mark(1)
		}
	})
	if err != nil {
		panic(err) // only fails on capacity <= 0
	}
	c.entries = entries
	return c
}

// Get returns the cached word for (addr, slot) and refreshes its LRU
// position.
func (c *HotStateCache) Get(addr common.Address, slot common.Hash) (common.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.entries.Get(cacheKey{addr, slot}); ok {
		c.hits++
		cacheHitMeter.Mark(1)
		return value.(common.Hash), true
	}
	c.misses++
	cacheMissMeter.Mark(1)
	return common.Hash{}, false
}

// Insert stores a word, evicting the least recently used entry when the
// capacity is exceeded.
func (c *HotStateCache) Insert(addr common.Address, slot common.Hash, value common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(cacheKey{addr, slot}, value)
}

// InvalidateAddress drops every entry belonging to the given contract and
// returns the number removed. Called when the backing contract is known to
// have changed, e.g. the signer registry at an epoch boundary.
func (c *HotStateCache) InvalidateAddress(addr common.Address) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purging = true
	defer func() { c.purging = false }()

	removed := 0
	for _, key := range c.entries.Keys() {
		if key.(cacheKey).addr == addr {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Purge empties the cache, keeping the counters.
func (c *HotStateCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purging = true
	defer func() { c.purging = false }()
	c.entries.Purge()
}

// Len returns the current number of entries.
func (c *HotStateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the performance counters.
func (c *HotStateCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.entries.Len(),
		Capacity:  c.capacity,
	}
}

// CachedReader fronts any StorageReader with a HotStateCache. The cache
// mutex is held only for the cache operation itself; the downstream read
// happens outside it, so a slow database read never blocks other readers.
type CachedReader struct {
	inner StorageReader
	cache *HotStateCache
}

// NewCachedReader wraps a reader with a shared cache. Short-lived readers
// created per block build should all share one cache instance.
func NewCachedReader(inner StorageReader, cache *HotStateCache) *CachedReader {
	return &CachedReader{inner: inner, cache: cache}
}

// ReadStorage implements StorageReader.
func (r *CachedReader) ReadStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	if value, ok := r.cache.Get(addr, slot); ok {
		return value, true
	}
	value, ok := r.inner.ReadStorage(addr, slot)
	if ok {
		r.cache.Insert(addr, slot, value)
	}
	return value, ok
}

// Cache exposes the shared cache, for invalidation and stats.
func (r *CachedReader) Cache() *HotStateCache {
	return r.cache
}
