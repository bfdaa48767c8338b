package query

import (
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/tokenize"
)

// unionFields lists the text fields a bare term or phrase is matched
// against; one token becomes a union of per-field subqueries rather than
// a cross-product across fields (spec.md §4.4: "parser must not cross
// field boundaries").
var unionFields = []schema.TextField{
	schema.Title,
	schema.StemmedCleanBody,
	schema.AllBody,
	schema.Url,
	schema.Description,
}

// Compile turns a parsed Query into the bleve query.Query the postings
// store searches with. Positive clauses are ANDed together; Not clauses
// become MustNot disjuncts in the same boolean query.
func Compile(q Query) bleveQuery.Query {
	var should []bleveQuery.Query
	var mustNot []bleveQuery.Query

	for _, c := range q.Clauses {
		switch v := c.(type) {
		case Term:
			should = append(should, termUnion(v.Text))
		case Phrase:
			should = append(should, phraseUnion(v.Terms))
		case Site:
			should = append(should, siteQuery(v.Host))
		case Not:
			mustNot = append(mustNot, compileClause(v.Clause))
		}
	}

	if len(should) == 0 && len(mustNot) == 0 {
		return bleveQuery.NewMatchNoneQuery()
	}

	b := bleveQuery.NewBooleanQuery()
	for _, s := range should {
		b.AddMust(s)
	}
	for _, n := range mustNot {
		b.AddMustNot(n)
	}
	return b
}

func compileClause(c Clause) bleveQuery.Query {
	switch v := c.(type) {
	case Term:
		return termUnion(v.Text)
	case Phrase:
		return phraseUnion(v.Terms)
	case Site:
		return siteQuery(v.Host)
	default:
		return bleveQuery.NewMatchNoneQuery()
	}
}

// termUnion builds a disjunction of one match subquery per union field.
// Title matching drops stopwords before analysis happens a second time
// inside bleve's own analyzer chain; querying the raw term still works
// since bleve applies the same analyzer to the query string, so a
// stopword term simply never matches the Title field's indexed tokens.
func termUnion(text string) bleveQuery.Query {
	disjuncts := make([]bleveQuery.Query, 0, len(unionFields))
	for _, f := range unionFields {
		m := bleveQuery.NewMatchQuery(text)
		m.SetField(f.Name())
		disjuncts = append(disjuncts, m)
	}
	return bleveQuery.NewDisjunctionQuery(disjuncts)
}

// phraseUnion builds a disjunction of phrase subqueries over every
// position-indexed union field.
func phraseUnion(terms []string) bleveQuery.Query {
	var disjuncts []bleveQuery.Query
	for _, f := range unionFields {
		if !f.HasPositions() {
			continue
		}
		p := bleveQuery.NewMatchPhraseQuery(joinTerms(terms))
		p.SetField(f.Name())
		disjuncts = append(disjuncts, p)
	}
	return bleveQuery.NewDisjunctionQuery(disjuncts)
}

// siteQuery matches the site: operator as a phrase query against the Url
// field, the same way postings.Index.GetWebpage looks up a URL: the
// lowercased host is re-analyzed by the field's Default analyzer, so
// site:example.com requires the words "example" "com" in sequence
// somewhere in the URL.
func siteQuery(host string) bleveQuery.Query {
	terms := tokenize.Tokenize(schema.Identity, host)
	if len(terms) == 0 {
		return bleveQuery.NewMatchNoneQuery()
	}
	m := bleveQuery.NewMatchPhraseQuery(terms[0])
	m.SetField(schema.Url.Name())
	return m
}

func joinTerms(terms []string) string {
	out := terms[0]
	for _, t := range terms[1:] {
		out += " " + t
	}
	return out
}
