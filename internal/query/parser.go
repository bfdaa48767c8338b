package query

import (
	"strings"
)

// DefaultMaxClauses bounds the number of clauses a single query may
// produce; tokens beyond the bound are dropped rather than rejected
// (spec.md §4.4: "term-count-bound truncation").
const DefaultMaxClauses = 32

// Parse splits raw into whitespace-separated tokens, recognizing quoted
// phrases, the site: and -term operators, and stops once maxClauses
// clauses have been produced. maxClauses <= 0 uses DefaultMaxClauses.
func Parse(raw string, maxClauses int) Query {
	if maxClauses <= 0 {
		maxClauses = DefaultMaxClauses
	}

	q := Query{Raw: raw}
	for _, tok := range splitTokens(raw) {
		if len(q.Clauses) >= maxClauses {
			break
		}

		negated := false
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			negated = true
			tok = tok[1:]
		}

		var clause Clause
		switch {
		case strings.HasPrefix(strings.ToLower(tok), "site:") && len(tok) > len("site:"):
			clause = Site{Host: strings.ToLower(tok[len("site:"):])}
		case isQuoted(tok):
			words := strings.Fields(strings.ToLower(unquote(tok)))
			if len(words) == 0 {
				continue
			}
			clause = Phrase{Terms: words}
		default:
			word := strings.ToLower(tok)
			if word == "" {
				continue
			}
			clause = Term{Text: word}
		}

		if negated {
			clause = Not{Clause: clause}
		}
		q.Clauses = append(q.Clauses, clause)
	}

	return q
}

// splitTokens splits raw on whitespace while keeping quoted phrases
// (including a leading '-' negation) intact as single tokens.
func splitTokens(raw string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			cur.WriteRune(r)
			inQuotes = !inQuotes
		case isSpace(r) && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isQuoted(tok string) bool {
	return strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2
}

func unquote(tok string) string {
	return strings.Trim(tok, `"`)
}
