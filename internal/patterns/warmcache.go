package patterns

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/standardbeagle/codesage/internal/types"
)

// warmCacheCapacity bounds the number of compiled queries kept warm across
// clear()/clear_language() cycles. Unlike the persistent ast/pattern tiers
// in internal/cache, eviction order here carries no testable contract —
// it only smooths repeated recompilation after a clear(), so otter's
// probabilistic S3-FIFO admission is a better fit than a hand-rolled LRU.
const warmCacheCapacity = 512

// warmCache holds compiled queries keyed by (language_id, pattern_id) so a
// clear_language() followed by a re-request of the same pattern can skip
// recompilation when the definition's source hasn't changed.
type warmCache struct {
	cache otter.Cache[string, types.CompiledQuery]
}

func newWarmCache() *warmCache {
	c, err := otter.MustBuilder[string, types.CompiledQuery](warmCacheCapacity).
		WithTTL(30 * time.Minute).
		Build()
	if err != nil {
		// otter's builder only fails on invalid capacity/TTL, both of
		// which are compile-time constants here.
		panic("patterns: invalid warm cache configuration: " + err.Error())
	}
	return &warmCache{cache: c}
}

func warmKey(languageID, patternID string) string {
	return languageID + "\x00" + patternID
}

func (w *warmCache) get(languageID, patternID string) (types.CompiledQuery, bool) {
	return w.cache.Get(warmKey(languageID, patternID))
}

func (w *warmCache) put(languageID, patternID string, q types.CompiledQuery) {
	w.cache.Set(warmKey(languageID, patternID), q)
}

func (w *warmCache) deleteLanguage(languageID string, patternIDs []string) {
	for _, id := range patternIDs {
		w.cache.Delete(warmKey(languageID, id))
	}
}

func (w *warmCache) clear() {
	w.cache.Clear()
}
