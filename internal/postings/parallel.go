package postings

import (
	"context"
	"errors"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"github.com/nonomal/stract/internal/errkind"
)

var errClosed = errors.New("index closed")

// SearchParallel is Search's concurrency-aware sibling: it fans the same
// query out across every open segment on a worker pool sized to the
// segment count (spec.md §5, "the query executor uses a worker pool
// whose parallelism matches segment count"), then replays collectFn
// sequentially in segment order so merge results stay deterministic
// regardless of goroutine completion order (spec.md §5, Ordering:
// "Collector outputs are deterministic given the same input set of
// segment fruits").
//
// ctx's deadline bounds the per-segment searches: a segment whose search
// has not completed by the time ctx is done is left out of the result
// instead of failing the call, and hasMore
// reports true so the caller can flag has_more_results on the response
// (spec.md §5, Cancellation and timeouts).
func (idx *Index) SearchParallel(ctx context.Context, q query.Query, size int, collectFn func(segmentOrd int, hits *bleve.SearchResult) error) (total uint64, hasMore bool, err error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return 0, false, errkind.New(errkind.IO, "SearchParallel", errClosed)
	}

	ords := idx.orderedSegmentIDs()
	results := make([]*bleve.SearchResult, len(ords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, len(ords)))

	for i, id := range ords {
		i, id := i, id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			seg := idx.segments[id]
			req := bleve.NewSearchRequest(q)
			req.Size = size
			req.Fields = []string{"*"}

			res, err := seg.index.SearchInContext(gctx, req)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return errkind.New(errkind.IO, "SearchParallel", err)
			}
			results[i] = res
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return 0, false, waitErr
	}

	for i, res := range results {
		if res == nil {
			hasMore = true
			continue
		}
		total += res.Total
		if err := collectFn(i, res); err != nil {
			return 0, false, err
		}
	}

	if ctx.Err() != nil {
		hasMore = true
	}

	return total, hasMore, nil
}
