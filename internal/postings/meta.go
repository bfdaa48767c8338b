package postings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/nonomal/stract/internal/errkind"
)

const metaFileName = "meta.json"

// segmentMeta is one segment's entry in meta.json: its directory name
// and the counters merge_into_max_segments partitions by.
type segmentMeta struct {
	ID      string `json:"id"`
	NumDocs int    `json:"num_docs"`
	// MaxScore is the highest PreComputedScore in the segment, used to
	// sort segments after a merge (spec.md §4.1, merge).
	MaxScore float64 `json:"max_score"`
	// CreatedAt is the Unix timestamp the segment was committed (or,
	// for a segment produced by a merge, the timestamp of the merge).
	// internal/livendex prunes segments by this field.
	CreatedAt int64 `json:"created_at"`
}

// meta is the persisted, whole-index view of which segments exist.
type meta struct {
	Segments []segmentMeta `json:"segments"`
}

func loadMeta(path string) (meta, error) {
	data, err := os.ReadFile(filepath.Join(path, metaFileName))
	if os.IsNotExist(err) {
		return meta{}, nil
	}
	if err != nil {
		return meta{}, errkind.New(errkind.IO, "loadMeta", err)
	}

	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return meta{}, errkind.New(errkind.Corrupt, "loadMeta", err)
	}
	return m, nil
}

func (m meta) save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errkind.New(errkind.IO, "meta.save", err)
	}
	tmp := filepath.Join(path, metaFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errkind.New(errkind.IO, "meta.save", err)
	}
	return os.Rename(tmp, filepath.Join(path, metaFileName))
}

// sortByMaxScoreDesc sorts segments by MaxScore descending, the order a
// merge rewrites meta.json in (spec.md §4.1, merge).
func (m *meta) sortByMaxScoreDesc() {
	sort.Slice(m.Segments, func(i, j int) bool {
		return m.Segments[i].MaxScore > m.Segments[j].MaxScore
	})
}

func (m meta) has(id string) bool {
	for _, s := range m.Segments {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (m meta) find(id string) (segmentMeta, bool) {
	for _, s := range m.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return segmentMeta{}, false
}

func (m *meta) remove(id string) {
	out := m.Segments[:0]
	for _, s := range m.Segments {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.Segments = out
}
