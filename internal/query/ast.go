// Package query parses a search box string into an AST and compiles it
// into the per-field union of bleve subqueries the postings store
// expects (spec.md §4.4, Query Layer).
//
// Grounded on the teacher's internal/search query-shaping packages
// (expander.go, decomposer.go): a small struct-based AST built by a
// single-pass regexp/field tokenizer, kept deliberately simpler than the
// teacher's multi-query fusion since this domain's operator set (site:,
// -term, "phrase") is fixed and must not cross field boundaries the way
// the teacher's generated sub-queries are free to.
package query

// Term is a single bare word to match, unioned across every applicable
// text field.
type Term struct {
	Text string
}

// Phrase is a quoted span matched as a contiguous phrase, unioned across
// every position-indexed text field.
type Phrase struct {
	Terms []string
}

// Not negates a Term or Phrase: matching documents are excluded.
type Not struct {
	Clause Clause
}

// Site restricts results to a host (the site: operator).
type Site struct {
	Host string
}

// Clause is one atom of a parsed query: Term, Phrase, Not, or Site.
type Clause interface{ isClause() }

func (Term) isClause()  {}
func (Phrase) isClause() {}
func (Not) isClause()   {}
func (Site) isClause()  {}

// Query is a parsed search-box string: a flat conjunction of clauses.
// Matching clauses (Term, Phrase, Site) must all be satisfiable;
// Not clauses must all fail.
type Query struct {
	Clauses []Clause
	// Raw is the original, unparsed query string, kept for diagnostics
	// and for is-homepage / snippet fallback decisions downstream.
	Raw string
}

// Terms returns every positive (non-negated, non-site) term and phrase
// word in the query, lowercased, for use as snippet query-term input and
// the image-relevance filter (webpage.SuppressUnrelatedImage).
func (q Query) Terms() []string {
	var out []string
	for _, c := range q.Clauses {
		switch v := c.(type) {
		case Term:
			out = append(out, v.Text)
		case Phrase:
			out = append(out, v.Terms...)
		}
	}
	return out
}

// IsEmpty reports whether the query has no clauses at all (spec.md §4.4:
// empty queries yield zero hits without failing).
func (q Query) IsEmpty() bool { return len(q.Clauses) == 0 }
