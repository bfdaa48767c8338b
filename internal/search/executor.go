// Package search implements the control flow spec.md §2 describes for a
// search: parse the query, score it against every segment through a
// per-segment bucket collector, merge segment fruits through a global
// bucket collector that de-duplicates, retrieve the survivors, generate
// snippets, and attach signal diagnostics.
//
// Grounded on the teacher's internal/search.Engine (engine.go): a struct
// holding injected collaborators (here: the postings index, ranker,
// centrality store, optional embedding index) with one exported Search
// entry point, a worker-pool fan-out via golang.org/x/sync/errgroup, and
// a context deadline that yields partial results instead of failing the
// whole request (spec.md §5, Cancellation and timeouts).
package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"log/slog"

	"github.com/nonomal/stract/internal/collector"
	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/postings"
	"github.com/nonomal/stract/internal/query"
	"github.com/nonomal/stract/internal/ranking"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/snippet"
	"github.com/nonomal/stract/internal/webpage"
)

// Centrality is the injected host/page centrality store (spec.md §9,
// "the centrality store ... injected by setter-style builders on the
// searcher").
type Centrality interface {
	HostCentrality(host string) float64
	PageCentrality(addr webpage.DocAddress) (float64, bool)
}

// noCentrality is the zero-value Centrality used when none is injected.
type noCentrality struct{}

func (noCentrality) HostCentrality(string) float64                    { return 0 }
func (noCentrality) PageCentrality(webpage.DocAddress) (float64, bool) { return 0, false }

// Searcher executes queries against one postings.Index, combining the
// query layer, ranker and bucket collector per spec.md §2's control
// flow.
type Searcher struct {
	idx        *postings.Index
	ranker     *ranking.Ranker
	centrality Centrality
	embeddings *ranking.EmbeddingIndex
	collector  config.CollectorConfig
	snippetCfg config.SnippetConfig
	log        *slog.Logger
}

// New builds a Searcher over idx using cfg for collector/snippet tuning.
// ranker, centrality and embeddings may be nil; a nil ranker uses
// ranking.New(nil, nil) (hard-coded default coefficients) and a nil
// centrality store reports zero for every host/page.
func New(idx *postings.Index, ranker *ranking.Ranker, centrality Centrality, embeddings *ranking.EmbeddingIndex, cfg *config.Config, log *slog.Logger) *Searcher {
	if ranker == nil {
		ranker = ranking.New(nil, nil)
	}
	if centrality == nil {
		centrality = noCentrality{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{
		idx:        idx,
		ranker:     ranker,
		centrality: centrality,
		embeddings: embeddings,
		collector:  cfg.Collector,
		snippetCfg: cfg.Snippet,
		log:        log,
	}
}

// WithEmbeddings attaches an embedding index (coder/hnsw backed) for the
// optional dual-encoder signal.
func (s *Searcher) WithEmbeddings(e *ranking.EmbeddingIndex) *Searcher {
	s.embeddings = e
	return s
}

// Request is one search call's parameters.
type Request struct {
	Query         string
	TopN          int
	Offset        int
	DeRankSimilar bool
	Explain       bool
	// QueryEmbedding, when non-nil and an EmbeddingIndex is attached,
	// feeds SignalEmbeddingSimilarity.
	QueryEmbedding []float32
}

// Response is one search call's result: the materialized, snippeted
// hits in ranked order, an approximate total count, and whether the
// deadline cut the scan short of every segment.
type Response struct {
	Hits        []webpage.RetrievedWebpage
	Total       uint64
	HasMoreHits bool
	ParsedQuery query.Query
}

// rankedDoc adapts one scored candidate to collector.Doc.
type rankedDoc struct {
	pointer webpage.WebpagePointer
}

func (r rankedDoc) Score() float64         { return r.pointer.Score.Total }
func (r rankedDoc) Hashes() webpage.Hashes { return r.pointer.Hashes }

// Search runs req against the index, returning at most req.TopN hits
// after req.Offset, deduplicated per spec.md §4.2 when DeRankSimilar is
// set. ctx's deadline bounds the per-segment fan-out; segments that
// don't finish in time are dropped and Response.HasMoreHits is set
// (spec.md §5, Cancellation and timeouts — "the search returns partial
// results from whatever segment collectors have completed").
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	parsed := query.Parse(req.Query, query.DefaultMaxClauses)
	topN := req.TopN
	if topN <= 0 {
		topN = 10
	}

	if parsed.IsEmpty() {
		return &Response{ParsedQuery: parsed}, nil
	}

	compiled := query.Compile(parsed)
	segmentSize := topN + req.Offset

	global := collector.New[rankedDoc](segmentSize, s.collector)

	total, hasMore, err := s.idx.SearchParallel(ctx, compiled, segmentSize, func(segmentOrd int, hits *bleve.SearchResult) error {
		perSegment := collector.New[rankedDoc](segmentSize, s.collector)
		maxConsidered := s.collector.MaxDocsConsidered
		if n := hits.Request.Size; n > 0 && n < maxConsidered {
			maxConsidered = n
		}

		for i, hit := range hits.Hits {
			if maxConsidered > 0 && i >= maxConsidered {
				break
			}

			docID, err := strconv.ParseUint(hit.ID, 10, 32)
			if err != nil {
				s.log.Warn("search_bad_doc_id",
					slog.Int("segment", segmentOrd),
					slog.String("id", hit.ID),
					slog.String("error", err.Error()))
				continue
			}

			addr := webpage.DocAddress{SegmentOrd: uint32(segmentOrd), DocID: uint32(docID)}
			pointer := s.buildPointer(addr, hit, req.QueryEmbedding)
			perSegment.Insert(rankedDoc{pointer: pointer})
		}

		for _, doc := range perSegment.IntoSortedSlice(req.DeRankSimilar) {
			global.Insert(doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ranked := global.IntoSortedSlice(req.DeRankSimilar)

	start := req.Offset
	if start > len(ranked) {
		start = len(ranked)
	}
	end := start + topN
	if end > len(ranked) {
		end = len(ranked)
	}
	ranked = ranked[start:end]

	terms := parsed.Terms()
	hitsOut := make([]webpage.RetrievedWebpage, 0, len(ranked))
	for _, rd := range ranked {
		rw, err := s.idx.Retrieve(rd.pointer.Address)
		if err != nil {
			s.log.Warn("search_retrieve_failed",
				slog.Any("address", rd.pointer.Address),
				slog.String("error", err.Error()))
			continue
		}

		isHomepage := isHomepageURL(rw.Url)
		rw.Snippet = snippet.Generate(s.snippetCfg, rw.Body, rw.Description, rw.DmozDescription, terms, isHomepage)
		rw.SuppressUnrelatedImage(terms)

		hitsOut = append(hitsOut, *rw)
	}

	return &Response{
		Hits:        hitsOut,
		Total:       total,
		HasMoreHits: hasMore,
		ParsedQuery: parsed,
	}, nil
}

// buildPointer scores one bleve hit into a WebpagePointer using the
// attached Ranker, centrality store and optional embedding index.
//
// bleve's DocumentMatch carries one combined relevance score per hit,
// not a per-field BM25 breakdown; rather than walk its explain tree (an
// internal structure not part of the stable query API), the combined
// score is attributed to AllBody, the broadest union field, and the
// per-field BM25 signals the ranker still enumerates (Title, Url, ...)
// are left at zero unless a caller injects a coefficient override that
// wants them driven some other way.
func (s *Searcher) buildPointer(addr webpage.DocAddress, hit *bleve.DocumentMatch, queryEmbedding []float32) webpage.WebpagePointer {
	fields := hit.Fields
	hashes := postings.HashesFromFields(fields)

	host := hostOf(stringVal(fields, schema.Url.Name()))

	input := ranking.Input{
		BM25: map[ranking.SignalID]float64{
			ranking.SignalBM25AllBody: hit.Score,
		},
		PreComputedScore: numVal(fields, schema.PreComputedScore.Name()),
		HostCentrality:   s.centrality.HostCentrality(host),
		UpdatedTime:      uint64(numVal(fields, schema.LastUpdated.Name())),
		Address:          addr,
	}
	if pc, ok := s.centrality.PageCentrality(addr); ok {
		input.PageCentrality = pc
	}
	if s.embeddings != nil && queryEmbedding != nil {
		input.EmbeddingSimilarity = s.embeddings.Similarity(queryEmbedding)
	}

	score := s.ranker.Score(input)

	return webpage.WebpagePointer{
		Score:   score,
		Hashes:  hashes,
		Address: addr,
	}
}

func stringVal(fields map[string]interface{}, name string) string {
	v, _ := fields[name].(string)
	return v
}

func numVal(fields map[string]interface{}, name string) float64 {
	v, ok := fields[name].(float64)
	if !ok {
		return 0
	}
	return v
}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	return strings.ToLower(u)
}

func isHomepageURL(rawURL string) bool {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if i := strings.Index(u, "/"); i >= 0 {
		u = u[i+1:]
	} else {
		return true
	}
	u = strings.TrimSuffix(u, "/")
	return u == ""
}
