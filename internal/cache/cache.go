// Package cache implements the engine's two-tier cache (C2): named
// persistent caches with LRU eviction, TTL, adaptive TTL, and dependency
// invalidation, plus a Coordinator for bulk operations and a request-scoped
// cache created per top-level parse call.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/codesage/internal/types"
)

// maxInvalidationDepth bounds the transitive-dependency walk per §4.2,
// guarding against cycles in the reverse dependency index.
const maxInvalidationDepth = 64

type entry struct {
	key         string
	value       types.Sized
	sizeBytes   int64
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int64
	baseTTL     time.Duration
	deps        map[string]struct{}
	elem        *list.Element
}

// expiresAt computes the entry's effective expiry, applying adaptive TTL
// (a multiplier in [0.5, 4.0] derived from access frequency) when enabled.
func (e *entry) expiresAt(adaptive bool) time.Time {
	ttl := e.baseTTL
	if adaptive {
		ttl = time.Duration(float64(ttl) * adaptiveFactor(e.accessCount))
	}
	return e.insertedAt.Add(ttl)
}

// expired reports whether e is past its effective expiry at now. An entry
// whose base TTL is zero never expires.
func (e *entry) expired(now time.Time, adaptive bool) bool {
	return e.baseTTL > 0 && now.After(e.expiresAt(adaptive))
}

// adaptiveFactor maps an access count to the [0.5, 4.0] multiplier named in
// §4.2: frequently-accessed entries get a longer effective TTL, rarely
// accessed ones a shorter one, with no cross-cache coordination required
// (the factor is purely a function of the entry's own AccessCount).
func adaptiveFactor(accessCount int64) float64 {
	switch {
	case accessCount <= 1:
		return 0.5
	case accessCount < 5:
		return 1.0
	case accessCount < 20:
		return 2.0
	default:
		return 4.0
	}
}

// Named is one persistent, memory-bounded cache (e.g. "ast", "pattern",
// "classification"). All mutation paths are serialized under mu, per
// §4.2/§5's "cache-local exclusion" requirement; this also gives the exact
// deterministic LRU eviction order §8's testable scenarios require.
type Named struct {
	name        string
	maxBytes    int64
	defaultTTL  time.Duration
	adaptiveTTL bool

	mu        sync.Mutex
	items     map[string]*entry
	order     *list.List // front = most recently used
	usedBytes int64
	// dependents maps a key to the set of keys that declared it as a
	// dependency, forming the reverse index used by invalidation.
	dependents map[string]map[string]struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewNamed constructs a persistent cache bounded to maxBytes with the given
// default TTL and adaptive-TTL policy.
func NewNamed(name string, maxBytes int64, defaultTTL time.Duration, adaptiveTTL bool) *Named {
	return &Named{
		name:        name,
		maxBytes:    maxBytes,
		defaultTTL:  defaultTTL,
		adaptiveTTL: adaptiveTTL,
		items:       make(map[string]*entry),
		order:       list.New(),
		dependents:  make(map[string]map[string]struct{}),
	}
}

// Get returns the live value for key, or (nil, false) on a miss, expired
// entry, or transitively-invalidated entry.
func (c *Named) Get(key string) (types.Sized, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if e.expired(time.Now(), c.adaptiveTTL) {
		c.removeLocked(e)
		c.misses.Add(1)
		return nil, false
	}

	e.accessCount++
	e.lastAccess = time.Now()
	c.order.MoveToFront(e.elem)
	c.hits.Add(1)
	return e.value, true
}

// Has reports liveness without affecting LRU order or access statistics.
func (c *Named) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return false
	}
	return !e.expired(time.Now(), c.adaptiveTTL)
}

// Set inserts or replaces key's value. If ttl is zero, the cache's default
// TTL applies; an entry whose resulting TTL is zero never expires. deps names keys this entry depends on; invalidating any of
// them invalidates this entry transitively. Set evicts least-recently-used
// entries until the resident set (not counting the entry being inserted)
// fits maxBytes, then admits the new entry regardless of its own size — a
// soft ceiling of maxBytes plus one entry's worth, not a hard cap — or
// rejects the insert (returning false) if the entry alone exceeds the
// budget.
func (c *Named) Set(key string, value types.Sized, ttl time.Duration, deps []string) bool {
	size := value.SizeBytes()
	if size > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		c.removeLocked(existing)
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	depSet := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		depSet[d] = struct{}{}
		if c.dependents[d] == nil {
			c.dependents[d] = make(map[string]struct{})
		}
		c.dependents[d][key] = struct{}{}
	}

	for c.usedBytes > c.maxBytes && c.order.Len() > 0 {
		oldest := c.order.Back()
		c.removeLocked(oldest.Value.(*entry))
		c.evictions.Add(1)
	}

	now := time.Now()
	e := &entry{
		key:        key,
		value:      value,
		sizeBytes:  size,
		insertedAt: now,
		lastAccess: now,
		baseTTL:    ttl,
		deps:       depSet,
	}
	e.elem = c.order.PushFront(e)
	c.items[key] = e
	c.usedBytes += size
	return true
}

// removeLocked deletes e from the cache; callers must hold mu.
func (c *Named) removeLocked(e *entry) {
	if _, ok := c.items[e.key]; !ok {
		return
	}
	delete(c.items, e.key)
	c.order.Remove(e.elem)
	c.usedBytes -= e.sizeBytes
	for d := range e.deps {
		delete(c.dependents[d], e.key)
		if len(c.dependents[d]) == 0 {
			delete(c.dependents, d)
		}
	}
}

// Invalidate removes key and transitively invalidates every entry whose
// dependency chain includes key, up to maxInvalidationDepth.
func (c *Named) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key, 0, make(map[string]struct{}))
}

func (c *Named) invalidateLocked(key string, depth int, visited map[string]struct{}) {
	if depth > maxInvalidationDepth {
		return
	}
	if _, seen := visited[key]; seen {
		return
	}
	visited[key] = struct{}{}

	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}

	dependents := c.dependents[key]
	if len(dependents) == 0 {
		return
	}
	toInvalidate := make([]string, 0, len(dependents))
	for d := range dependents {
		toInvalidate = append(toInvalidate, d)
	}
	for _, d := range toInvalidate {
		c.invalidateLocked(d, depth+1, visited)
	}
}

// InvalidateMatching invalidates every resident key with the given prefix,
// returning the count removed (before transitive invalidation of their
// dependents, which is also performed).
func (c *Named) InvalidateMatching(prefix string) int {
	c.mu.Lock()
	keys := make([]string, 0)
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.Invalidate(k)
	}
	return len(keys)
}

// Stats is a point-in-time snapshot of a cache's aggregate counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	BytesResident int64
	EntryCount    int
}

// Stats returns the cache's current counters.
func (c *Named) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		BytesResident: c.usedBytes,
		EntryCount:    len(c.items),
	}
}
