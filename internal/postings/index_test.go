package postings

import (
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/require"

	"github.com/nonomal/stract/internal/webpage"
)

func testDocument(title, url, body string, score float64) *webpage.Document {
	return &webpage.Document{
		Title:            title,
		AllBody:          body,
		CleanBody:        body,
		StemmedCleanBody: body,
		Url:              url,
		Description:      body,
		PreComputedScore: score,
	}
}

func TestOpenInsertCommitSearch(t *testing.T) {
	dir := t.TempDir()

	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(DefaultWriterConfig())
	require.NoError(t, err)

	require.NoError(t, w.Insert(testDocument("Rust programming", "https://example.com/rust", "rust is a systems language", 3.0)))
	require.NoError(t, w.Insert(testDocument("Go programming", "https://example.com/go", "go is a systems language too", 4.0)))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	q := bleve.NewMatchQuery("systems")
	total, err := idx.Search(q, 10, func(segmentOrd int, hits *bleve.SearchResult) error {
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestInsertRejectsMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(DefaultWriterConfig())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	err = w.Insert(&webpage.Document{Title: "no body or url"})
	require.Error(t, err)
}

func TestGetWebpage(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(DefaultWriterConfig())
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDocument("Example", "https://example.com/page", "hello world", 1.0)))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	rw, err := idx.GetWebpage("https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, rw)
	require.Equal(t, "Example", rw.Title)
}

func TestRetrieveGoneDocAfterBadAddress(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, err = idx.Retrieve(webpage.DocAddress{SegmentOrd: 0, DocID: 0})
	require.Error(t, err)
}

func TestWriterExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w1, err := idx.Writer(DefaultWriterConfig())
	require.NoError(t, err)
	defer func() { _ = w1.Close() }()

	_, err = idx.Writer(DefaultWriterConfig())
	require.Error(t, err)
}

func TestMergeIntoMaxSegments(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	for i := 0; i < 4; i++ {
		w, err := idx.Writer(DefaultWriterConfig())
		require.NoError(t, err)
		require.NoError(t, w.Insert(testDocument("doc", "https://example.com/"+string(rune('a'+i)), "body text", float64(i))))
		require.NoError(t, w.Commit())
		require.NoError(t, w.Close())
	}

	require.Len(t, idx.meta.Segments, 4)
	require.NoError(t, idx.MergeIntoMaxSegments(2))
	require.LessOrEqual(t, len(idx.meta.Segments), 2)
}
