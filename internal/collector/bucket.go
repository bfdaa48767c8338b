// Package collector implements the bucket collector: top-N selection
// with score de-prioritization across repeated site/url/url-without-tld
// and title bucket keys, plus a final SimHash near-duplicate pass.
//
// Grounded line-for-line on
// original_source/crates/core/src/collector/top_docs.rs
// (BucketCount, ScoredDoc, BucketCollector, into_sorted_vec). tantivy's
// MinMaxHeap has no direct Go package in the example pack, so the heap is
// built on stdlib container/heap — the one structural substitution this
// package makes, justified in DESIGN.md.
package collector

import (
	"container/heap"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/simhash"
	"github.com/nonomal/stract/internal/webpage"
)

// Doc is anything the collector can rank: a score and the bucket hashes
// used for de-duplication.
type Doc interface {
	Score() float64
	Hashes() webpage.Hashes
}

// scoredDoc wraps a Doc with its current adjusted score, the value the
// heap orders by.
type scoredDoc[T Doc] struct {
	doc           T
	adjustedScore float64
}

// bucketCount tracks how many accepted documents have claimed each
// bucket key, and computes the adjusted score used to de-prioritize
// repeats (spec.md §6, BucketCount.adjust_score).
type bucketCount struct {
	config  config.CollectorConfig
	buckets map[schema.Prehashed]int
}

func newBucketCount(cfg config.CollectorConfig) *bucketCount {
	return &bucketCount{config: cfg, buckets: make(map[schema.Prehashed]int)}
}

func (c *bucketCount) adjustedScore(doc Doc) float64 {
	h := doc.Hashes()

	takenSites := c.buckets[h.Site]
	takenUrls := c.buckets[h.Url]
	takenUrlsNoTld := c.buckets[h.UrlWithoutTld]
	takenTitles := c.buckets[h.Title]

	adjuster := 1.0 / (1.0 +
		float64(takenSites)*c.config.SitePenalty +
		float64(takenUrls)*c.config.UrlPenalty +
		float64(takenUrlsNoTld)*c.config.UrlWithoutTldPenalty +
		float64(takenTitles)*c.config.TitlePenalty)

	return doc.Score() * adjuster
}

func (c *bucketCount) updateCounts(doc Doc) {
	h := doc.Hashes()
	c.buckets[h.Site]++
	c.buckets[h.Url]++
	c.buckets[h.UrlWithoutTld]++
	c.buckets[h.Title]++
}

// maxHeap orders scoredDoc by ascending adjustedScore, so as a
// container/heap it is a min-heap with the minimum at index 0. Insert
// never evicts; popMax finds the maximum with a linear scan (maxIndex)
// and takes it out with heap.Remove. This stands in for a min-max heap,
// since into_sorted_vec drains the whole structure exactly once per call
// (spec.md §6).
type maxHeap[T Doc] []*scoredDoc[T]

func (h maxHeap[T]) Len() int            { return len(h) }
func (h maxHeap[T]) Less(i, j int) bool  { return h[i].adjustedScore < h[j].adjustedScore }
func (h maxHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap[T]) Push(x interface{}) { *h = append(*h, x.(*scoredDoc[T])) }
func (h *maxHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bucket is the top-N collector: insert documents in any order, then
// drain them best-first with into_sorted_vec.
type Bucket[T Doc] struct {
	topN      int
	count     *bucketCount
	documents maxHeap[T]
}

// New returns a Bucket keeping at most topN documents, using cfg for
// the per-bucket penalty coefficients.
func New[T Doc](topN int, cfg config.CollectorConfig) *Bucket[T] {
	if topN <= 0 {
		panic("collector: top_n must be positive")
	}
	return &Bucket[T]{
		topN:  topN,
		count: newBucketCount(cfg),
	}
}

// Insert adds doc to the collector, computing its current adjusted
// score against bucket counts observed so far. The collector itself
// does not bound how many documents it holds; MaxDocsConsidered instead
// bounds how many documents a segment-level collector feeds in before it
// stops scanning (spec.md §6, TopSegmentCollector.is_done).
func (b *Bucket[T]) Insert(doc T) {
	sd := &scoredDoc[T]{doc: doc}
	sd.adjustedScore = b.count.adjustedScore(sd.doc)
	heap.Push(&b.documents, sd)
}

// popMax removes and returns the document with the highest adjusted
// score, re-adjusting it against the latest bucket counts first and
// re-inserting if its score changed — mirroring update_best_doc's
// fixed-point loop against the max side of the heap.
func (b *Bucket[T]) popMax() (*scoredDoc[T], bool) {
	if b.documents.Len() == 0 {
		return nil, false
	}

	for {
		idx := maxIndex(b.documents)
		candidate := b.documents[idx]
		before := candidate.adjustedScore
		candidate.adjustedScore = b.count.adjustedScore(candidate.doc)
		if candidate.adjustedScore == before {
			heap.Remove(&b.documents, idx)
			return candidate, true
		}
		heap.Fix(&b.documents, idx)
	}
}

func maxIndex[T Doc](h maxHeap[T]) int {
	best := 0
	for i := 1; i < len(h); i++ {
		if h[i].adjustedScore > h[best].adjustedScore {
			best = i
		}
	}
	return best
}

// IntoSortedSlice drains the collector best-first into at most topN
// documents. When deRankSimilar is set, a document whose non-zero
// simhash fingerprint is already present in the running near-duplicate
// table is deferred into a backfill list instead of accepted outright;
// backfill entries are appended, in original order, to fill any
// remaining capacity once the main pass is exhausted (spec.md §6,
// into_sorted_vec).
func (b *Bucket[T]) IntoSortedSlice(deRankSimilar bool) []T {
	res := make([]T, 0, b.topN)
	var dups []T
	dupTable := simhash.New(simhash.DefaultThreshold)

	for {
		best, ok := b.popMax()
		if !ok {
			break
		}

		hashes := best.doc.Hashes()

		if deRankSimilar && hashes.SimHash != 0 {
			if dupTable.Contains(hashes.SimHash) {
				dups = append(dups, best.doc)
				continue
			}
			dupTable.Insert(hashes.SimHash)
		}

		if deRankSimilar {
			b.count.updateCounts(best.doc)
		}

		res = append(res, best.doc)
		if len(res) == b.topN {
			break
		}
	}

	remaining := b.topN - len(res)
	if remaining > len(dups) {
		remaining = len(dups)
	}
	if remaining > 0 {
		res = append(res, dups[:remaining]...)
	}

	return res
}
