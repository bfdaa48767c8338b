package postings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/nonomal/stract/internal/errkind"
)

// segment is one immutable, self-contained bleve index living in its own
// uuid-named sub-directory of the parent Index's path. Segments are
// never mutated in place after commit; they are only opened, searched,
// merged away, or deleted.
type segment struct {
	id    string
	dir   string
	index bleve.Index
}

func segmentDir(indexPath, id string) string {
	return filepath.Join(indexPath, id)
}

func newSegmentID() string {
	return uuid.NewString()
}

// createSegment builds a new, empty segment directory under indexPath
// using the shared field mapping.
func createSegment(indexPath string, im *mapping.IndexMappingImpl) (*segment, error) {
	id := newSegmentID()
	dir := segmentDir(indexPath, id)

	idx, err := bleve.New(dir, im)
	if err != nil {
		return nil, errkind.New(errkind.IO, "createSegment", err)
	}
	return &segment{id: id, dir: dir, index: idx}, nil
}

// openSegment opens a previously committed segment directory.
func openSegment(indexPath, id string) (*segment, error) {
	dir := segmentDir(indexPath, id)
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, errkind.New(errkind.Corrupt, "openSegment", fmt.Errorf("segment %s: %w", id, err))
	}
	return &segment{id: id, dir: dir, index: idx}, nil
}

func (s *segment) close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}

func (s *segment) remove() error {
	if err := s.close(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}

// docCount returns the number of documents in the segment, used by
// merge_into_max_segments' greedy worst-fit partitioning.
func (s *segment) docCount() (uint64, error) {
	return s.index.DocCount()
}
