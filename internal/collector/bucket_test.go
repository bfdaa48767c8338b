package collector

import (
	"testing"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

// testDoc is the minimal Doc used to mirror the Rust SegmentDoc fixtures
// in top_docs.rs's test cases.
type testDoc struct {
	id     int
	score  float64
	hashes webpage.Hashes
}

func (d testDoc) Score() float64         { return d.score }
func (d testDoc) Hashes() webpage.Hashes { return d.hashes }

func key(n uint64) schema.Prehashed { return schema.CombineU64s(n, n) }

func hashesOf(n, simhash uint64) webpage.Hashes {
	return webpage.Hashes{
		Site:          key(n),
		Title:         key(n),
		Url:           key(n),
		UrlWithoutTld: key(n),
		SimHash:       simhash,
	}
}

type fixture struct {
	hashes webpage.Hashes
	id     int
	score  float64
}

type want struct {
	score float64
	id    int
}

func run(t *testing.T, topN int, docs []fixture, expected []want) {
	t.Helper()

	b := New[testDoc](topN, config.DefaultCollectorConfig())
	for _, d := range docs {
		b.Insert(testDoc{id: d.id, score: d.score, hashes: d.hashes})
	}

	got := b.IntoSortedSlice(true)
	if len(got) != len(expected) {
		t.Fatalf("expected %d docs, got %d: %+v", len(expected), len(got), got)
	}
	for i, w := range expected {
		if got[i].score != w.score || got[i].id != w.id {
			t.Fatalf("index %d: expected {%v %v}, got %+v", i, w.score, w.id, got[i])
		}
	}
}

func TestAllDifferent(t *testing.T) {
	run(t, 3, []fixture{
		{hashesOf(1, 12), 123, 1.0},
		{hashesOf(2, 123), 124, 2.0},
		{hashesOf(3, 1234), 125, 3.0},
		{hashesOf(4, 12345), 126, 4.0},
		{hashesOf(5, 123456), 127, 5.0},
	}, []want{{5.0, 127}, {4.0, 126}, {3.0, 125}})
}

func TestLessThanTopN(t *testing.T) {
	run(t, 10, []fixture{
		{hashesOf(3, 12), 125, 3.0},
		{hashesOf(4, 123), 126, 4.0},
		{hashesOf(5, 1234), 127, 5.0},
	}, []want{{5.0, 127}, {4.0, 126}, {3.0, 125}})
}

func TestSameKeyDePrioritised(t *testing.T) {
	run(t, 10, []fixture{
		{hashesOf(1, 12), 125, 3.0},
		{hashesOf(2, 123), 126, 3.1},
		{hashesOf(2, 1234), 127, 5.0},
	}, []want{{5.0, 127}, {3.0, 125}, {3.1, 126}})

	run(t, 2, []fixture{
		{hashesOf(1, 12), 125, 3.0},
		{hashesOf(2, 123), 126, 3.1},
		{hashesOf(2, 1234), 127, 5.0},
	}, []want{{5.0, 127}, {3.0, 125}})
}

func TestSimhashDedup(t *testing.T) {
	run(t, 10, []fixture{
		{hashesOf(1, 1234), 125, 3.0},
		{hashesOf(2, 1234), 126, 3.1},
		{hashesOf(3, 1), 127, 5.0},
	}, []want{{5.0, 127}, {3.1, 126}, {3.0, 125}})
}
