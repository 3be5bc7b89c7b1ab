package cache

import "sync"

// Coordinator is the process-wide registry of named persistent caches. It
// exposes bulk invalidation by prefix and aggregated metrics across every
// registered cache; per §4.2 it performs only read-mostly operations under
// a reader-writer discipline — registering a new named cache is the only
// write path.
type Coordinator struct {
	mu     sync.RWMutex
	caches map[string]*Named
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{caches: make(map[string]*Named)}
}

// Register adds a named cache, replacing any cache already registered
// under that name.
func (co *Coordinator) Register(c *Named) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.caches[c.name] = c
}

// Cache returns the named cache, or (nil, false) if it has not been
// registered.
func (co *Coordinator) Cache(name string) (*Named, bool) {
	co.mu.RLock()
	defer co.mu.RUnlock()
	c, ok := co.caches[name]
	return c, ok
}

// Invalidate purges key from every registered cache — used when a single
// logical key (e.g. a content hash) appears across the ast/pattern/
// classification caches.
func (co *Coordinator) Invalidate(key string) {
	co.mu.RLock()
	caches := make([]*Named, 0, len(co.caches))
	for _, c := range co.caches {
		caches = append(caches, c)
	}
	co.mu.RUnlock()

	for _, c := range caches {
		c.Invalidate(key)
	}
}

// InvalidateMatching purges every key with the given prefix from every
// registered cache — the hook the external file-watcher collaborator calls
// when a source file changes (§6).
func (co *Coordinator) InvalidateMatching(prefix string) int {
	co.mu.RLock()
	caches := make([]*Named, 0, len(co.caches))
	for _, c := range co.caches {
		caches = append(caches, c)
	}
	co.mu.RUnlock()

	total := 0
	for _, c := range caches {
		total += c.InvalidateMatching(prefix)
	}
	return total
}

// AggregateStats is the coordinator-wide metrics rollup (hits, misses,
// evictions, bytes resident) summed across every registered cache.
type AggregateStats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	BytesResident int64
	PerCache      map[string]Stats
}

// Metrics returns the aggregated metrics across every registered cache.
func (co *Coordinator) Metrics() AggregateStats {
	co.mu.RLock()
	defer co.mu.RUnlock()

	agg := AggregateStats{PerCache: make(map[string]Stats, len(co.caches))}
	for name, c := range co.caches {
		s := c.Stats()
		agg.PerCache[name] = s
		agg.Hits += s.Hits
		agg.Misses += s.Misses
		agg.Evictions += s.Evictions
		agg.BytesResident += s.BytesResident
	}
	return agg
}
