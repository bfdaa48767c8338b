package query

import (
	"testing"

	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
)

func TestCompileEmptyQueryMatchesNone(t *testing.T) {
	q := Parse("", 0)
	compiled := Compile(q)
	if compiled == nil {
		t.Fatal("Compile returned nil")
	}
	if _, ok := compiled.(*bleveQuery.MatchNoneQuery); !ok {
		t.Fatalf("Compile(empty) = %T, want *query.MatchNoneQuery", compiled)
	}
}

func TestCompileBareTermProducesQuery(t *testing.T) {
	q := Parse("rust", 0)
	compiled := Compile(q)
	if compiled == nil {
		t.Fatal("Compile returned nil for a single term")
	}
}

func TestCompilePhraseAndNegationProducesQuery(t *testing.T) {
	q := Parse(`"systems language" -golang site:example.com`, 0)
	compiled := Compile(q)
	if compiled == nil {
		t.Fatal("Compile returned nil")
	}
}
