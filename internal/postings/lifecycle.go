package postings

import (
	"fmt"

	"github.com/nonomal/stract/internal/errkind"
)

// SegmentSummary is the subset of segment metadata internal/livendex
// needs to decide what to prune or compact, without exposing the
// segment type itself.
type SegmentSummary struct {
	ID        string
	NumDocs   int
	CreatedAt int64
}

// Segments lists every committed segment's summary, in meta.json order
// (descending MaxScore).
func (idx *Index) Segments() []SegmentSummary {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]SegmentSummary, len(idx.meta.Segments))
	for i, sm := range idx.meta.Segments {
		out[i] = SegmentSummary{ID: sm.ID, NumDocs: sm.NumDocs, CreatedAt: sm.CreatedAt}
	}
	return out
}

// RemoveSegment deletes one committed segment's directory and drops it
// from meta.json, for the TTL-based pruning internal/livendex's tick
// loop performs (spec.md §4.6).
func (idx *Index) RemoveSegment(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seg, ok := idx.segments[id]
	if !ok {
		return errkind.New(errkind.GoneDoc, "RemoveSegment", fmt.Errorf("segment %s not found", id))
	}
	if err := seg.remove(); err != nil {
		return errkind.New(errkind.IO, "RemoveSegment", err)
	}
	delete(idx.segments, id)
	idx.meta.remove(id)
	return idx.meta.save(idx.path)
}

// ReloadSegment opens a segment directory written by an external
// process (e.g. a replica catching up) and registers it, without going
// through a Writer — internal/livendex calls this from its fsnotify
// handler when a new segment directory appears under the index path
// (spec.md §4.6).
func (idx *Index) ReloadSegment(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.segments[id]; ok {
		return nil
	}

	seg, err := openSegment(idx.path, id)
	if err != nil {
		return err
	}
	count, err := seg.docCount()
	if err != nil {
		return errkind.New(errkind.IO, "ReloadSegment", err)
	}
	maxScore, err := seg.maxScore()
	if err != nil {
		return errkind.New(errkind.IO, "ReloadSegment", err)
	}

	idx.meta.Segments = append(idx.meta.Segments, segmentMeta{ID: id, NumDocs: int(count), MaxScore: maxScore})
	idx.meta.sortByMaxScoreDesc()
	idx.segments[id] = seg
	return idx.meta.save(idx.path)
}
