package postings

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"log/slog"

	"github.com/nonomal/stract/internal/errkind"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

// writerConfig mirrors config.IndexConfig's writer-facing fields,
// decoupled from the config package so postings has no import on it.
type writerConfig struct {
	BufferBytes  int
	SingleThread bool
}

// DefaultWriterConfig returns the writer defaults (spec.md §4.1,
// Lifecycles: "a writer is opened with a single thread and a large write
// buffer").
func DefaultWriterConfig() writerConfig {
	return writerConfig{BufferBytes: 256 << 20, SingleThread: true}
}

// Writer is the single active writer for an Index. Insert does not
// flush; Commit atomically publishes a new segment and reloads readers.
type Writer struct {
	idx     *Index
	lock    *flock.Flock
	cfg     writerConfig
	pending *segment
	nextDoc uint32
}

// Insert appends doc to the active (uncommitted) segment. The caller
// must supply a fully populated document; Insert rejects one missing a
// required text field (spec.md §4.1, insert).
func (w *Writer) Insert(doc *webpage.Document) error {
	if err := doc.Validate(); err != nil {
		return errkind.New(errkind.Schema, "Insert", err)
	}

	if w.pending == nil {
		seg, err := createSegment(w.idx.path, w.idx.mapping)
		if err != nil {
			return err
		}
		w.pending = seg
	}

	bleveDoc := toBleveDoc(doc)
	id := fmt.Sprintf("%d", w.nextDoc)
	if err := w.pending.index.Index(id, bleveDoc); err != nil {
		return errkind.New(errkind.IO, "Insert", err)
	}
	w.nextDoc++
	return nil
}

// Commit atomically publishes all pending inserts as a new segment and
// registers it in meta.json; subsequent Search/Retrieve calls observe it
// (spec.md §4.1, commit). Searches already in flight keep using the
// snapshot they started with since segments are never mutated in place.
func (w *Writer) Commit() error {
	if w.pending == nil {
		return nil
	}

	count, err := w.pending.docCount()
	if err != nil {
		return errkind.New(errkind.IO, "Commit", err)
	}
	if count == 0 {
		_ = w.pending.remove()
		w.pending = nil
		return nil
	}

	maxScore, err := w.pending.maxScore()
	if err != nil {
		return errkind.New(errkind.IO, "Commit", err)
	}

	sm := segmentMeta{ID: w.pending.id, NumDocs: int(count), MaxScore: maxScore, CreatedAt: time.Now().Unix()}
	if err := w.idx.registerSegment(sm, w.pending); err != nil {
		return err
	}

	w.pending = nil
	w.nextDoc = 0
	return nil
}

// Close releases the writer's lock. Any uncommitted inserts are
// discarded along with the pending segment's directory.
func (w *Writer) Close() error {
	if w.pending != nil {
		if err := w.pending.remove(); err != nil {
			slog.Warn("postings_writer_discard_failed", slog.String("error", err.Error()))
		}
		w.pending = nil
	}
	return w.lock.Unlock()
}

// maxScore walks the segment's documents to find the highest
// PreComputedScore, used to order segments after commit or merge.
func (s *segment) maxScore() (float64, error) {
	count, err := s.index.DocCount()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	req := newMatchAllSortedByScore(int(count))
	res, err := s.index.Search(req)
	if err != nil {
		return 0, err
	}

	var max float64
	for _, hit := range res.Hits {
		v, ok := hit.Fields[schema.PreComputedScore.Name()].(float64)
		if ok && v > max {
			max = v
		}
	}
	return max, nil
}
