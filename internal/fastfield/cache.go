// Package fastfield caches per-document column-field values behind an
// LRU so repeated reads of the same (segment, doc) during ranking don't
// re-parse stored field values on every access.
//
// Grounded on the teacher's internal/embed.CachedEmbedder
// (hashicorp/golang-lru/v2 wrapping a slower lookup behind a string key)
// generalized from embeddings to fast-field scalars.
package fastfield

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

// DefaultCacheSize bounds the number of (segment, doc, field) entries
// kept resident.
const DefaultCacheSize = 100_000

// key identifies one document's value for one fast field within a
// single index snapshot.
type key struct {
	addr  webpage.DocAddress
	field schema.FastField
}

// Cache is a bounded, concurrency-safe (via the underlying lru.Cache's
// own locking) store of fast-field values keyed by document address.
type Cache struct {
	values *lru.Cache[key, float64]
}

// New builds a Cache holding up to size entries; size <= 0 uses
// DefaultCacheSize.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New[key, float64](size)
	return &Cache{values: c}
}

// Get returns the cached value for addr/field, if present.
func (c *Cache) Get(addr webpage.DocAddress, field schema.FastField) (float64, bool) {
	return c.values.Get(key{addr: addr, field: field})
}

// Put stores a value for addr/field, evicting the least-recently-used
// entry if the cache is full.
func (c *Cache) Put(addr webpage.DocAddress, field schema.FastField, value float64) {
	c.values.Add(key{addr: addr, field: field}, value)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int { return c.values.Len() }

// Purge evicts every entry, used when a segment set changes underneath
// the cache (merge, commit) and DocAddresses are no longer valid.
func (c *Cache) Purge() { c.values.Purge() }

// Warmer is a reader-lifecycle hook invoked once per new segment
// snapshot to precompute ancillary structures (spec.md §3, Warmer).
// internal/search registers a Cache-backed Warmer so ranking never pays
// a cold read for the fast fields it touches on every candidate.
type Warmer interface {
	Warm(snapshot Snapshot) error
}

// Snapshot is the minimal view a Warmer needs of a segment set: an
// enumerable list of (address, field) -> value sources. internal/search
// supplies the concrete implementation backed by postings.Index.
type Snapshot interface {
	// ForEachFastField enumerates every live document's fast-field
	// values. Implementations may skip documents cheaply (e.g. via a
	// match-all scan) since this only runs once per commit/merge.
	ForEachFastField(func(addr webpage.DocAddress, values map[schema.FastField]float64) error) error
}

// CacheWarmer adapts a Cache into a Warmer, populating it from a
// Snapshot.
type CacheWarmer struct {
	cache *Cache
}

// NewCacheWarmer returns a Warmer that fills cache from each Warm call.
func NewCacheWarmer(cache *Cache) *CacheWarmer {
	return &CacheWarmer{cache: cache}
}

// Warm purges stale entries (DocAddresses are snapshot-local) and
// repopulates the cache from snapshot.
func (w *CacheWarmer) Warm(snapshot Snapshot) error {
	w.cache.Purge()
	return snapshot.ForEachFastField(func(addr webpage.DocAddress, values map[schema.FastField]float64) error {
		for field, value := range values {
			w.cache.Put(addr, field, value)
		}
		return nil
	})
}

var _ Warmer = (*CacheWarmer)(nil)

func (k key) String() string {
	return fmt.Sprintf("%d:%d:%s", k.addr.SegmentOrd, k.addr.DocID, k.field.Name())
}
