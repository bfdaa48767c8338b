// Package postings implements the segment-based postings store: one
// bleve.Index per immutable segment directory, a meta.json enumerating
// them, and a single locked Writer.
//
// Grounded on the teacher's internal/store/bm25.go (BleveBM25Index:
// corruption detection, sync.RWMutex guarding the index, slog structured
// logging, fmt.Errorf wrapping) generalized from one flat index to a
// directory of segments, per
// original_source/crates/core/src/inverted_index.rs's segment model.
package postings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gofrs/flock"
	"log/slog"

	"github.com/nonomal/stract/internal/errkind"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/tokenize"
	"github.com/nonomal/stract/internal/webpage"
)

// Index owns a directory of immutable segments plus their meta.json.
// Safe for concurrent Search/Retrieve; Writer access is exclusive.
type Index struct {
	mu       sync.RWMutex
	path     string
	mapping  *mapping.IndexMappingImpl
	meta     meta
	segments map[string]*segment
	closed   bool
}

// Open opens path, creating it (and an empty meta.json) if it does not
// yet exist. Fails with errkind.Corrupt if meta.json exists but cannot
// be parsed, or a listed segment cannot be opened (spec.md §4.1, open).
func Open(path string) (*Index, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, fmt.Errorf("postings: build mapping: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errkind.New(errkind.IO, "Open", err)
	}

	m, err := loadMeta(path)
	if err != nil {
		return nil, fmt.Errorf("postings: open %s: %w", path, err)
	}

	segments := make(map[string]*segment, len(m.Segments))
	for _, sm := range m.Segments {
		seg, err := openSegment(path, sm.ID)
		if err != nil {
			for _, opened := range segments {
				_ = opened.close()
			}
			return nil, fmt.Errorf("postings: open %s: %w", path, err)
		}
		segments[sm.ID] = seg
	}

	return &Index{
		path:     path,
		mapping:  im,
		meta:     m,
		segments: segments,
	}, nil
}

// Close releases every open segment.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true

	var firstErr error
	for _, seg := range idx.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Writer returns an exclusive writer for this index, acquiring a
// directory-level file lock so at most one process writes at a time
// (spec.md §4.1, Lifecycles).
func (idx *Index) Writer(cfg writerConfig) (*Writer, error) {
	lockPath := filepath.Join(idx.path, ".writer.lock")
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, errkind.New(errkind.IO, "Writer", err)
	}
	if !locked {
		return nil, errkind.New(errkind.Conflict, "Writer", fmt.Errorf("index %s already has an active writer", idx.path))
	}

	return &Writer{idx: idx, lock: lock, cfg: cfg}, nil
}

// Search runs query against every open segment and merges results
// through collectFn, returning the approximate total hit count.
//
// collectFn receives, for each segment, its ordinal and the raw bleve
// *bleve.SearchResult so callers can drive their own
// collector (e.g. internal/collector.Bucket) rather than being handed
// bleve's own ranked result type.
func (idx *Index) Search(q query.Query, size int, collectFn func(segmentOrd int, hits *bleve.SearchResult) error) (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return 0, errkind.New(errkind.IO, "Search", fmt.Errorf("index closed"))
	}

	var total uint64
	ords := idx.orderedSegmentIDs()
	for i, id := range ords {
		seg := idx.segments[id]
		req := bleve.NewSearchRequest(q)
		req.Size = size
		req.Fields = []string{"*"}

		res, err := seg.index.Search(req)
		if err != nil {
			return 0, errkind.New(errkind.IO, "Search", fmt.Errorf("segment %s: %w", id, err))
		}
		total += res.Total

		if err := collectFn(i, res); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Retrieve materializes the stored fields of one document. Fails with
// errkind.GoneDoc if its segment has since been merged away.
func (idx *Index) Retrieve(addr webpage.DocAddress) (*webpage.RetrievedWebpage, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ords := idx.orderedSegmentIDs()
	if int(addr.SegmentOrd) >= len(ords) {
		return nil, errkind.New(errkind.GoneDoc, "Retrieve", fmt.Errorf("segment ordinal %d gone", addr.SegmentOrd))
	}

	seg, ok := idx.segments[ords[addr.SegmentOrd]]
	if !ok {
		return nil, errkind.New(errkind.GoneDoc, "Retrieve", fmt.Errorf("segment %s gone", ords[addr.SegmentOrd]))
	}

	docID := fmt.Sprintf("%d", addr.DocID)
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docID}))
	req.Size = 1
	req.Fields = []string{"*"}

	res, err := seg.index.Search(req)
	if err != nil {
		return nil, errkind.New(errkind.IO, "Retrieve", err)
	}
	if len(res.Hits) == 0 {
		return nil, errkind.New(errkind.GoneDoc, "Retrieve", fmt.Errorf("doc %s not found in segment %s", docID, seg.id))
	}

	return documentToWebpage(res.Hits[0].Fields), nil
}

// GetWebpage lowercases url as a single Identity token and issues it as a
// phrase query against the Url field, whose Default analyzer splits it
// into words at search time; it returns the highest-scoring hit across
// all segments, if any (spec.md §4.1, get_webpage).
func (idx *Index) GetWebpage(url string) (*webpage.RetrievedWebpage, error) {
	terms := tokenize.Tokenize(schema.Identity, url)
	if len(terms) == 0 {
		return nil, nil
	}

	phrase := query.NewMatchPhraseQuery(terms[0])
	phrase.SetField(schema.Url.Name())

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best *webpage.RetrievedWebpage
	var bestScore float64

	for _, id := range idx.orderedSegmentIDs() {
		seg := idx.segments[id]
		req := bleve.NewSearchRequest(phrase)
		req.Size = 1
		req.Fields = []string{"*"}

		res, err := seg.index.Search(req)
		if err != nil {
			return nil, errkind.New(errkind.IO, "GetWebpage", err)
		}
		for _, hit := range res.Hits {
			if best == nil || hit.Score > bestScore {
				best = documentToWebpage(hit.Fields)
				bestScore = hit.Score
			}
		}
	}
	return best, nil
}

// orderedSegmentIDs returns segment IDs sorted by descending MaxScore,
// the order in which a query's natural collector should walk segments so
// early-termination heuristics see the best-scored segments first.
func (idx *Index) orderedSegmentIDs() []string {
	ids := make([]string, len(idx.meta.Segments))
	for i, sm := range idx.meta.Segments {
		ids[i] = sm.ID
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return idx.scoreOf(ids[i]) > idx.scoreOf(ids[j])
	})
	return ids
}

func (idx *Index) scoreOf(id string) float64 {
	for _, sm := range idx.meta.Segments {
		if sm.ID == id {
			return sm.MaxScore
		}
	}
	return 0
}

func (idx *Index) registerSegment(sm segmentMeta, seg *segment) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.meta.Segments = append(idx.meta.Segments, sm)
	idx.meta.sortByMaxScoreDesc()
	idx.segments[sm.ID] = seg

	if err := idx.meta.save(idx.path); err != nil {
		return err
	}

	slog.Info("postings_segment_committed",
		slog.String("index", idx.path),
		slog.String("segment", sm.ID),
		slog.Int("num_docs", sm.NumDocs))
	return nil
}
