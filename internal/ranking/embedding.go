package ranking

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// EmbeddingIndex is the optional dual-encoder similarity signal: an
// approximate nearest-neighbor graph over document embeddings, queried
// with a query embedding to produce SignalEmbeddingSimilarity. Grounded
// on the teacher's HNSWStore (internal/store/hnsw.go): a coder/hnsw
// graph keyed by a dense uint64, with a string<->key mapping layered on
// top since this package's callers address documents by
// webpage.DocAddress rather than hnsw's native key type.
type EmbeddingIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	keyOf   map[string]uint64
	addrOf  map[uint64]string
	nextKey uint64
}

// NewEmbeddingIndex builds an empty cosine-similarity index for vectors
// of the given dimensionality.
func NewEmbeddingIndex(dimensions int) *EmbeddingIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance

	return &EmbeddingIndex{
		graph:      graph,
		dimensions: dimensions,
		keyOf:      make(map[string]uint64),
		addrOf:     make(map[uint64]string),
	}
}

// Add inserts or replaces the embedding for id (an opaque document key,
// typically formed from a webpage.DocAddress).
func (e *EmbeddingIndex) Add(id string, vector []float32) error {
	if len(vector) != e.dimensions {
		return fmt.Errorf("ranking: embedding dimension mismatch: want %d, got %d", e.dimensions, len(vector))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.keyOf[id]; ok {
		// Lazy deletion: coder/hnsw graphs misbehave when the last node
		// is removed, so orphan the mapping rather than call Delete.
		delete(e.addrOf, existing)
	}

	normalized := normalize(vector)
	key := e.nextKey
	e.nextKey++

	e.graph.Add(hnsw.MakeNode(key, normalized))
	e.keyOf[id] = key
	e.addrOf[key] = id

	return nil
}

// Similarity returns the best cosine similarity (in [0, 1], 1 = identical
// direction) between query and any indexed vector, or 0 if the index is
// empty. This is the raw value SignalEmbeddingSimilarity reports.
func (e *EmbeddingIndex) Similarity(query []float32) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.graph.Len() == 0 || len(query) != e.dimensions {
		return 0
	}

	normalized := normalize(query)
	nodes := e.graph.Search(normalized, 1)
	if len(nodes) == 0 {
		return 0
	}

	dist := e.graph.Distance(normalized, nodes[0].Value)
	// Cosine distance ranges 0 (identical) to 2 (opposite); fold to a
	// [0, 1] similarity.
	return 1 - float64(dist)/2
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}

	out := make([]float32, len(v))
	inv := float32(1 / math.Sqrt(sumSquares))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
