package fastfield

import (
	"testing"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := New(10)
	addr := webpage.DocAddress{SegmentOrd: 1, DocID: 2}

	if _, ok := c.Get(addr, schema.HostNodeID); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put(addr, schema.HostNodeID, 42)
	v, ok := c.Get(addr, schema.HostNodeID)
	if !ok || v != 42 {
		t.Fatalf("Get = (%v, %v), want (42, true)", v, ok)
	}
}

func TestCachePurgeClearsEntries(t *testing.T) {
	c := New(10)
	addr := webpage.DocAddress{SegmentOrd: 0, DocID: 0}
	c.Put(addr, schema.Region, 1)

	c.Purge()

	if _, ok := c.Get(addr, schema.Region); ok {
		t.Fatalf("expected miss after Purge")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Purge", c.Len())
	}
}

type stubSnapshot struct {
	docs map[webpage.DocAddress]map[schema.FastField]float64
}

func (s stubSnapshot) ForEachFastField(fn func(webpage.DocAddress, map[schema.FastField]float64) error) error {
	for addr, values := range s.docs {
		if err := fn(addr, values); err != nil {
			return err
		}
	}
	return nil
}

func TestCacheWarmerPopulatesCache(t *testing.T) {
	c := New(10)
	w := NewCacheWarmer(c)

	addr := webpage.DocAddress{SegmentOrd: 0, DocID: 5}
	snap := stubSnapshot{docs: map[webpage.DocAddress]map[schema.FastField]float64{
		addr: {schema.PreComputedScore: 3.5},
	}}

	if err := w.Warm(snap); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	v, ok := c.Get(addr, schema.PreComputedScore)
	if !ok || v != 3.5 {
		t.Fatalf("Get after Warm = (%v, %v), want (3.5, true)", v, ok)
	}
}
