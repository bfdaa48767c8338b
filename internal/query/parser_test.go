package query

import "testing"

func TestParseBareTerms(t *testing.T) {
	q := Parse("rust programming", 0)
	if len(q.Clauses) != 2 {
		t.Fatalf("len(Clauses) = %d, want 2", len(q.Clauses))
	}
	if term, ok := q.Clauses[0].(Term); !ok || term.Text != "rust" {
		t.Fatalf("Clauses[0] = %#v, want Term{rust}", q.Clauses[0])
	}
}

func TestParsePhrase(t *testing.T) {
	q := Parse(`"systems programming language"`, 0)
	if len(q.Clauses) != 1 {
		t.Fatalf("len(Clauses) = %d, want 1", len(q.Clauses))
	}
	p, ok := q.Clauses[0].(Phrase)
	if !ok {
		t.Fatalf("Clauses[0] = %#v, want Phrase", q.Clauses[0])
	}
	want := []string{"systems", "programming", "language"}
	if len(p.Terms) != len(want) {
		t.Fatalf("Terms = %v, want %v", p.Terms, want)
	}
	for i := range want {
		if p.Terms[i] != want[i] {
			t.Fatalf("Terms[%d] = %q, want %q", i, p.Terms[i], want[i])
		}
	}
}

func TestParseNegatedTerm(t *testing.T) {
	q := Parse("rust -golang", 0)
	if len(q.Clauses) != 2 {
		t.Fatalf("len(Clauses) = %d, want 2", len(q.Clauses))
	}
	not, ok := q.Clauses[1].(Not)
	if !ok {
		t.Fatalf("Clauses[1] = %#v, want Not", q.Clauses[1])
	}
	term, ok := not.Clause.(Term)
	if !ok || term.Text != "golang" {
		t.Fatalf("Not.Clause = %#v, want Term{golang}", not.Clause)
	}
}

func TestParseSiteOperator(t *testing.T) {
	q := Parse("rust site:example.com", 0)
	if len(q.Clauses) != 2 {
		t.Fatalf("len(Clauses) = %d, want 2", len(q.Clauses))
	}
	site, ok := q.Clauses[1].(Site)
	if !ok || site.Host != "example.com" {
		t.Fatalf("Clauses[1] = %#v, want Site{example.com}", q.Clauses[1])
	}
}

func TestParseNegatedSiteOperator(t *testing.T) {
	q := Parse("rust -site:spam.com", 0)
	not, ok := q.Clauses[1].(Not)
	if !ok {
		t.Fatalf("Clauses[1] = %#v, want Not", q.Clauses[1])
	}
	if site, ok := not.Clause.(Site); !ok || site.Host != "spam.com" {
		t.Fatalf("Not.Clause = %#v, want Site{spam.com}", not.Clause)
	}
}

func TestParseEmptyQueryYieldsNoClauses(t *testing.T) {
	q := Parse("   ", 0)
	if !q.IsEmpty() {
		t.Fatalf("expected empty query, got %d clauses", len(q.Clauses))
	}
}

func TestParseTruncatesAtMaxClauses(t *testing.T) {
	q := Parse("one two three four five", 3)
	if len(q.Clauses) != 3 {
		t.Fatalf("len(Clauses) = %d, want 3", len(q.Clauses))
	}
}

func TestTermsCollectsPositiveWords(t *testing.T) {
	q := Parse(`rust "is great" -golang site:example.com`, 0)
	terms := q.Terms()
	want := map[string]bool{"rust": true, "is": true, "great": true}
	if len(terms) != len(want) {
		t.Fatalf("Terms() = %v, want 3 terms matching %v", terms, want)
	}
	for _, term := range terms {
		if !want[term] {
			t.Fatalf("unexpected term %q in %v", term, terms)
		}
	}
}
