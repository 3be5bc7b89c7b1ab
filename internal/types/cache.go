package types

import "time"

// Sized is implemented by any cache value so the cache layer can account
// for memory budget without needing to know the value's concrete type.
type Sized interface {
	SizeBytes() int64
}

// CacheEntry is one resident item in a persistent-tier cache. Invariant: for
// any live entry E with a dependency D, invalidating D invalidates E
// transitively before E can be served again.
type CacheEntry struct {
	Key          string
	Value        Sized
	SizeBytes    int64
	InsertedAt   time.Time
	LastAccess   time.Time
	AccessCount  int64
	TTL          time.Duration
	Dependencies map[string]struct{}
}

// BytesValue is a trivial Sized wrapper for raw byte payloads, used by
// Custom Backend caches that store nothing structured.
type BytesValue []byte

func (b BytesValue) SizeBytes() int64 { return int64(len(b)) }
