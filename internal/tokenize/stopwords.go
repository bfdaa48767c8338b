package tokenize

// stopwords is the fixed English stopword list. Entity search ignores
// only the first 50 of these in titles (spec.md §3, Tokenizers).
var stopwords = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
	"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
	"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
	"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
	"people", "into", "year", "your", "good", "some", "could", "them", "see", "other",
	"than", "then", "now", "look", "only", "come", "its", "over", "think", "also",
}

var allStopwords = buildSet(stopwords)

func buildSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// stopwordSet returns the stopword set truncated to n entries, or the
// full list when n <= 0 or n exceeds its length. Entity search uses
// n=50 (spec.md §3); title matching uses the full list.
func stopwordSet(n int) map[string]struct{} {
	if n <= 0 || n >= len(stopwords) {
		return allStopwords
	}
	return buildSet(stopwords[:n])
}
