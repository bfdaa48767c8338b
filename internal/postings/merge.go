package postings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"log/slog"

	"github.com/nonomal/stract/internal/errkind"
)

// MergeIntoMaxSegments partitions existing segments into
// ⌈maxN/2⌉ buckets by greedy worst-fit on descending doc count, then
// physically merges each bucket into one new segment, deleting the
// orphaned originals (spec.md §4.1, merge_into_max_segments).
func (idx *Index) MergeIntoMaxSegments(maxN int) error {
	if maxN <= 0 {
		return errkind.New(errkind.Schema, "MergeIntoMaxSegments", fmt.Errorf("max_n must be positive"))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.meta.Segments) <= maxN {
		return nil
	}

	numBuckets := (maxN + 1) / 2
	buckets := greedyWorstFit(idx.meta.Segments, numBuckets)

	for _, bucket := range buckets {
		if len(bucket) <= 1 {
			continue
		}
		if err := idx.mergeBucketLocked(bucket); err != nil {
			return err
		}
	}
	return nil
}

// greedyWorstFit sorts segments by descending NumDocs and assigns each,
// in turn, to the bucket with the current smallest total (standard
// greedy worst-fit bin packing).
func greedyWorstFit(segments []segmentMeta, numBuckets int) [][]segmentMeta {
	sorted := append([]segmentMeta(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NumDocs > sorted[j].NumDocs })

	buckets := make([][]segmentMeta, numBuckets)
	totals := make([]int, numBuckets)

	for _, sm := range sorted {
		worst := 0
		for i := 1; i < numBuckets; i++ {
			if totals[i] < totals[worst] {
				worst = i
			}
		}
		buckets[worst] = append(buckets[worst], sm)
		totals[worst] += sm.NumDocs
	}
	return buckets
}

// mergeBucketLocked combines every segment in bucket into one freshly
// written segment, then deletes the originals. Caller holds idx.mu.
func (idx *Index) mergeBucketLocked(bucket []segmentMeta) error {
	dst, err := createSegment(idx.path, idx.mapping)
	if err != nil {
		return err
	}

	var nextID uint32
	for _, sm := range bucket {
		seg, ok := idx.segments[sm.ID]
		if !ok {
			continue
		}
		if err := copySegmentDocs(seg, dst, &nextID); err != nil {
			return err
		}
	}

	maxScore, err := dst.maxScore()
	if err != nil {
		return err
	}
	count, err := dst.docCount()
	if err != nil {
		return err
	}

	for _, sm := range bucket {
		if seg, ok := idx.segments[sm.ID]; ok {
			if err := seg.remove(); err != nil {
				slog.Warn("postings_merge_remove_failed", slog.String("segment", sm.ID), slog.String("error", err.Error()))
			}
			delete(idx.segments, sm.ID)
		}
		idx.meta.remove(sm.ID)
	}

	idx.meta.Segments = append(idx.meta.Segments, segmentMeta{ID: dst.id, NumDocs: int(count), MaxScore: maxScore, CreatedAt: time.Now().Unix()})
	idx.meta.sortByMaxScoreDesc()
	idx.segments[dst.id] = dst

	return idx.meta.save(idx.path)
}

// copySegmentDocs re-indexes every document in src into dst, renumbering
// ids sequentially from *nextID.
func copySegmentDocs(src, dst *segment, nextID *uint32) error {
	count, err := src.index.DocCount()
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = []string{"*"}

	res, err := src.index.Search(req)
	if err != nil {
		return errkind.New(errkind.IO, "copySegmentDocs", err)
	}

	batch := dst.index.NewBatch()
	for _, hit := range res.Hits {
		id := fmt.Sprintf("%d", *nextID)
		if err := batch.Index(id, hit.Fields); err != nil {
			return errkind.New(errkind.IO, "copySegmentDocs", err)
		}
		*nextID++
	}
	return dst.index.Batch(batch)
}

// Merge physically moves non-overlapping segment directories from
// other's index directory into idx's, unions meta.segments, sorts by
// MaxScore descending, rewrites meta.json, and removes other's
// directory (spec.md §4.1, merge). Segments whose ids already exist in
// idx's meta are skipped if they are the same segment (already merged
// once); if two distinct segments share an id, Merge aborts with
// errkind.Conflict before renaming anything (spec.md §9: "two distinct
// segments sharing a filename... specification declares this Conflict
// and requires the merge to abort before any file rename").
func (idx *Index) Merge(other *Index) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	for _, sm := range other.meta.Segments {
		if existing, ok := idx.meta.find(sm.ID); ok {
			if existing.NumDocs != sm.NumDocs || existing.MaxScore != sm.MaxScore {
				return errkind.New(errkind.Conflict, "Merge", fmt.Errorf("segment id %s: distinct segments share a filename", sm.ID))
			}
		}
	}

	for _, sm := range other.meta.Segments {
		if idx.meta.has(sm.ID) {
			continue
		}
		seg, ok := other.segments[sm.ID]
		if !ok {
			continue
		}
		if err := seg.close(); err != nil {
			return errkind.New(errkind.IO, "Merge", err)
		}

		dst := segmentDir(idx.path, sm.ID)
		if err := os.Rename(seg.dir, dst); err != nil {
			return errkind.New(errkind.IO, "Merge", err)
		}

		reopened, err := openSegment(idx.path, sm.ID)
		if err != nil {
			return err
		}

		idx.segments[sm.ID] = reopened
		idx.meta.Segments = append(idx.meta.Segments, sm)
		delete(other.segments, sm.ID)
	}

	idx.meta.sortByMaxScoreDesc()
	if err := idx.meta.save(idx.path); err != nil {
		return err
	}

	other.meta = meta{}
	return os.RemoveAll(filepath.Clean(other.path))
}
