// Package snippet picks the passage of body text shown under a search
// result: a window of desired_num_chars ± delta_num_chars centered on
// query terms, falling back through body → description →
// dmoz_description when the preferred source is too short.
//
// Grounded on spec.md §4.1 ("Snippet generation") with no direct teacher
// analogue (the teacher indexes code, not prose); style follows the
// config-driven, small-pure-function shape used throughout
// internal/postings and internal/collector.
package snippet

import (
	"strings"
	"unicode"

	"github.com/nonomal/stract/internal/config"
)

// Generate returns the best snippet for body given queryTerms (already
// lowercased), falling back through description and dmozDescription when
// body is shorter than cfg.MinBodyLength (or MinBodyLengthHomepage for
// a homepage, i.e. a URL whose path is empty or "/").
func Generate(cfg config.SnippetConfig, body, description, dmozDescription string, queryTerms []string, isHomepage bool) string {
	minBody := cfg.MinBodyLength
	if isHomepage {
		minBody = cfg.MinBodyLengthHomepage
	}

	if len([]rune(body)) >= minBody {
		if s := bestWindow(cfg, body, queryTerms); s != "" {
			return s
		}
	}

	if s := firstWords(description, cfg.MinDescriptionWords); s != "" {
		return s
	}

	if s := firstWords(dmozDescription, cfg.MinDescriptionWords); s != "" {
		return s
	}

	return firstWords(body, cfg.EmptyQuerySnippetWords)
}

// bestWindow scans body for the passage_num_chars-wide window (desired ±
// delta) containing the most query terms among any min_passage_width
// consecutive words, preferring earlier matches on a tie.
func bestWindow(cfg config.SnippetConfig, body string, queryTerms []string) string {
	words := splitWords(body)
	if len(words) == 0 {
		return ""
	}

	terms := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		terms[t] = struct{}{}
	}

	width := cfg.MinPassageWidth
	if width <= 0 || width > len(words) {
		width = len(words)
	}

	bestScore := -1
	bestStart := 0
	for start := 0; start+width <= len(words); start++ {
		score := 0
		for _, w := range words[start : start+width] {
			if _, ok := terms[strings.ToLower(w)]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
	}

	window := strings.Join(words[bestStart:min(bestStart+width, len(words))], " ")
	return clampChars(window, cfg.DesiredNumChars, cfg.DeltaNumChars)
}

// clampChars trims s to at most desired+delta runes, preferring a clean
// trailing word boundary.
func clampChars(s string, desired, delta int) string {
	runes := []rune(s)
	max := desired + delta
	if max <= 0 || len(runes) <= max {
		return s
	}

	truncated := runes[:max]
	if idx := strings.LastIndexFunc(string(truncated), unicode.IsSpace); idx > 0 {
		return string(truncated[:len([]rune(string(truncated)[:idx]))]) + "…"
	}
	return string(truncated) + "…"
}

func firstWords(s string, n int) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	if n <= 0 || n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return unicode.IsSpace(r) })
}
