// Package ranking implements the signal computer and linear ranker:
// turn a candidate document's column-field values and query-match
// signals into a single Score whose Total drives the bucket collector.
//
// Grounded on original_source/src/ranking/mod.rs's enumerated signal
// list, expressed in Go the way the teacher enumerates closed sets
// elsewhere (internal/schema.TextField/FastField): a small int enum with
// a Name() method and an All() constructor.
package ranking

import "github.com/nonomal/stract/internal/webpage"

// SignalID enumerates every signal the ranker can compute. Order is
// stable and public: coefficient tables are keyed by SignalID.
type SignalID int

const (
	SignalBM25Title SignalID = iota
	SignalBM25CleanBody
	SignalBM25StemmedCleanBody
	SignalBM25AllBody
	SignalBM25Url
	SignalBM25Description
	SignalPreComputedScore
	SignalHostCentrality
	SignalPageCentrality
	SignalFetchTimeMs
	SignalCrawlStability
	SignalUpdatedTime
	SignalEmbeddingSimilarity
	numSignals
)

var signalNames = [numSignals]string{
	SignalBM25Title:            "bm25_title",
	SignalBM25CleanBody:        "bm25_clean_body",
	SignalBM25StemmedCleanBody: "bm25_stemmed_clean_body",
	SignalBM25AllBody:          "bm25_all_body",
	SignalBM25Url:              "bm25_url",
	SignalBM25Description:      "bm25_description",
	SignalPreComputedScore:     "pre_computed_score",
	SignalHostCentrality:       "host_centrality",
	SignalPageCentrality:       "page_centrality",
	SignalFetchTimeMs:          "fetch_time_ms",
	SignalCrawlStability:       "crawl_stability",
	SignalUpdatedTime:          "updated_time",
	SignalEmbeddingSimilarity:  "embedding_similarity",
}

// Name returns the signal's stable, on-the-wire name (e.g. for
// diagnostics requested by a caller).
func (s SignalID) Name() string { return signalNames[s] }

// All returns every registered signal, mirroring SignalEnum::all() in
// original_source/src/ranking/mod.rs.
func All() []SignalID {
	out := make([]SignalID, numSignals)
	for i := range out {
		out[i] = SignalID(i)
	}
	return out
}

// Input bundles everything a Signal needs to compute its value for one
// candidate document: BM25 partials the engine exposes per field, the
// stored column-field values, and any optional injected scorers.
type Input struct {
	BM25 map[SignalID]float64

	PreComputedScore float64
	HostCentrality   float64
	PageCentrality   float64
	FetchTimeMs      float64
	CrawlStability   float64
	UpdatedTime      uint64

	// EmbeddingSimilarity is populated by the optional dual-encoder
	// signal (internal/ranking/embedding.go) when a model is injected;
	// zero otherwise.
	EmbeddingSimilarity float64

	Address webpage.DocAddress
}

// compute returns signal id's raw value for input. Snippet-only /
// diagnostic signals that have no natural value of their own return 0
// and rely on a zero coefficient to stay inert.
func compute(id SignalID, in Input) float64 {
	switch id {
	case SignalBM25Title, SignalBM25CleanBody, SignalBM25StemmedCleanBody,
		SignalBM25AllBody, SignalBM25Url, SignalBM25Description:
		return in.BM25[id]
	case SignalPreComputedScore:
		return in.PreComputedScore
	case SignalHostCentrality:
		return in.HostCentrality
	case SignalPageCentrality:
		return in.PageCentrality
	case SignalFetchTimeMs:
		return in.FetchTimeMs
	case SignalCrawlStability:
		return in.CrawlStability
	case SignalUpdatedTime:
		return float64(in.UpdatedTime)
	case SignalEmbeddingSimilarity:
		return in.EmbeddingSimilarity
	default:
		return 0
	}
}
