package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/postings"
	"github.com/nonomal/stract/internal/webpage"
)

// These mirror spec.md §8's end-to-end scenarios, driving the full
// parse -> collect -> retrieve -> snippet path through Searcher.Search
// rather than any single package in isolation (the teacher's
// internal/integration/index_search_test.go does the same for its own
// search engine).

func openTestIndex(t *testing.T) *postings.Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := postings.Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func insertAndCommit(t *testing.T, idx *postings.Index, docs ...*webpage.Document) {
	t.Helper()
	w, err := idx.Writer(postings.DefaultWriterConfig())
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Insert(d))
	}
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())
}

func newSearcher(t *testing.T, idx *postings.Index) *Searcher {
	t.Helper()
	return New(idx, nil, nil, nil, config.NewConfig(), nil)
}

// TestSearch_SimpleSearch_FindsDocument is spec.md §8 scenario 1: a
// single document, queried by a word in its body, comes back as the
// only hit under its own URL.
func TestSearch_SimpleSearch_FindsDocument(t *testing.T) {
	idx := openTestIndex(t)
	insertAndCommit(t, idx, &webpage.Document{
		Title:            "Test website",
		Url:              "https://www.example.com",
		AllBody:          "this is the best example website ever",
		CleanBody:        "this is the best example website ever",
		StemmedCleanBody: "this is the best example website ever",
		PreComputedScore: 1.0,
	})

	s := newSearcher(t, idx)
	resp, err := s.Search(context.Background(), Request{Query: "website", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.Equal(t, "https://www.example.com", resp.Hits[0].Url)
}

// TestSearch_Stemming_MatchesStemmedVariant is spec.md §8 scenario 2 /
// invariant I6: a query for the stem "runner" matches a document whose
// only occurrence is "runners" in the stemmed field.
func TestSearch_Stemming_MatchesStemmedVariant(t *testing.T) {
	idx := openTestIndex(t)
	insertAndCommit(t, idx, &webpage.Document{
		Title:            "Website for runners",
		Url:              "https://www.example.com/runners",
		AllBody:          "a website for runners",
		CleanBody:        "a website for runners",
		StemmedCleanBody: "a website for runners",
		PreComputedScore: 1.0,
	})

	s := newSearcher(t, idx)
	resp, err := s.Search(context.Background(), Request{Query: "runner", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.Equal(t, "https://www.example.com/runners", resp.Hits[0].Url)
}

// TestSearch_ImageRelevanceFilter is spec.md §8 scenario 3: the primary
// image survives a query that matches a description term, but is
// suppressed once the query also carries a term absent from both the
// title and description term sets.
func TestSearch_ImageRelevanceFilter(t *testing.T) {
	idx := openTestIndex(t)
	insertAndCommit(t, idx, &webpage.Document{
		Title:            "title",
		Url:              "https://www.example.com/image-page",
		AllBody:          "this is the best example website ever",
		CleanBody:        "this is the best example website ever",
		StemmedCleanBody: "this is the best example website ever",
		Description:      "this is an image for the test website",
		PrimaryImage:     []byte("fake-jpeg-bytes"),
		PreComputedScore: 1.0,
	})

	s := newSearcher(t, idx)

	resp, err := s.Search(context.Background(), Request{Query: "website", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.NotEmpty(t, resp.Hits[0].PrimaryImage, "website matches a description term, image should survive")

	resp, err = s.Search(context.Background(), Request{Query: "best website", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.Empty(t, resp.Hits[0].PrimaryImage, "\"best\" is in neither title nor description terms, image should be suppressed")
}

// TestSearch_AfterIndexMerge_FindsBothDocuments is spec.md §8 scenario
// 7: two indexes, one document each, merged and committed into a
// single index, both resolve through one shared-term query.
func TestSearch_AfterIndexMerge_FindsBothDocuments(t *testing.T) {
	base := t.TempDir()

	idxA, err := postings.Open(filepath.Join(base, "a"))
	require.NoError(t, err)
	insertAndCommit(t, idxA, &webpage.Document{
		Title:            "First shared page",
		Url:              "https://www.example.com/first",
		AllBody:          "shared term appears here",
		CleanBody:        "shared term appears here",
		StemmedCleanBody: "shared term appears here",
		PreComputedScore: 1.0,
	})

	idxB, err := postings.Open(filepath.Join(base, "b"))
	require.NoError(t, err)
	insertAndCommit(t, idxB, &webpage.Document{
		Title:            "Second shared page",
		Url:              "https://www.example.com/second",
		AllBody:          "shared term appears here too",
		CleanBody:        "shared term appears here too",
		StemmedCleanBody: "shared term appears here too",
		PreComputedScore: 2.0,
	})

	require.NoError(t, idxA.Merge(idxB))
	defer func() { _ = idxA.Close() }()

	s := newSearcher(t, idxA)
	resp, err := s.Search(context.Background(), Request{Query: "shared", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)

	urls := map[string]bool{}
	for _, hit := range resp.Hits {
		urls[hit.Url] = true
	}
	require.True(t, urls["https://www.example.com/first"])
	require.True(t, urls["https://www.example.com/second"])
}

// TestSearch_HostTermSearch is spec.md §8 scenario 8: a bare word that
// appears only inside a document's URL (not its title or body) still
// surfaces that document, since the Url field is word-tokenized rather
// than held as a single exact-match token (internal/schema's
// TextField.Tokenizer, grounded on spec.md §4.1's get_webpage wording).
func TestSearch_HostTermSearch(t *testing.T) {
	idx := openTestIndex(t)
	insertAndCommit(t, idx, &webpage.Document{
		Title:            "Danish public broadcaster",
		Url:              "https://www.dr.dk",
		AllBody:          "a public broadcaster in denmark",
		CleanBody:        "a public broadcaster in denmark",
		StemmedCleanBody: "a public broadcaster in denmark",
		PreComputedScore: 1.0,
	})

	s := newSearcher(t, idx)
	resp, err := s.Search(context.Background(), Request{Query: "dr", TopN: 10})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.Equal(t, "https://www.dr.dk", resp.Hits[0].Url)
}
