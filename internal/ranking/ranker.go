package ranking

import "github.com/nonomal/stract/internal/webpage"

// defaultCoefficients holds the hard-coded fallback weight for every
// signal. Values favor lexical relevance (BM25 over title/body) with a
// modest boost from page quality signals; centrality and freshness stay
// small so they nudge ties rather than dominate a query match.
var defaultCoefficients = map[SignalID]float64{
	SignalBM25Title:            3.0,
	SignalBM25CleanBody:        1.0,
	SignalBM25StemmedCleanBody: 0.5,
	SignalBM25AllBody:          0.3,
	SignalBM25Url:              1.5,
	SignalBM25Description:      0.5,
	SignalPreComputedScore:     1.0,
	SignalHostCentrality:       2.0,
	SignalPageCentrality:       1.0,
	SignalFetchTimeMs:          0,
	SignalCrawlStability:       0.5,
	SignalUpdatedTime:          0,
	SignalEmbeddingSimilarity:  0,
}

// DefaultCoefficients returns a fresh copy of the hard-coded coefficient
// table, safe for callers to mutate.
func DefaultCoefficients() map[SignalID]float64 {
	out := make(map[SignalID]float64, len(defaultCoefficients))
	for k, v := range defaultCoefficients {
		out[k] = v
	}
	return out
}

// LinearModel supplies a learned coefficient table, e.g. fit offline by
// linear regression against click data.
type LinearModel interface {
	Coefficient(id SignalID) (float64, bool)
}

// Ranker turns one candidate document's Input into a Score by computing
// every registered signal and combining it with a coefficient. Coefficient
// lookup order, highest priority first: per-request overrides, an
// injected LinearModel, then the hard-coded defaults.
type Ranker struct {
	overrides map[SignalID]float64
	model     LinearModel
}

// New builds a Ranker. overrides and model may both be nil.
func New(overrides map[SignalID]float64, model LinearModel) *Ranker {
	return &Ranker{overrides: overrides, model: model}
}

// coefficient resolves id's weight using the Ranker's priority chain.
func (r *Ranker) coefficient(id SignalID) float64 {
	if r.overrides != nil {
		if c, ok := r.overrides[id]; ok {
			return c
		}
	}
	if r.model != nil {
		if c, ok := r.model.Coefficient(id); ok {
			return c
		}
	}
	return defaultCoefficients[id]
}

// Score computes every signal for in and combines them into a total via
// total = Σ coeff_i · value_i. Signals with a zero coefficient are still
// reported (for explain-mode callers) but contribute nothing to Total.
func (r *Ranker) Score(in Input) webpage.Score {
	all := All()
	signals := make([]webpage.SignalScore, len(all))
	var total float64

	for i, id := range all {
		value := compute(id, in)
		coeff := r.coefficient(id)
		signals[i] = webpage.SignalScore{Name: id.Name(), Value: value, Coefficient: coeff}
		total += coeff * value
	}

	return webpage.Score{Total: total, Signals: signals}
}
