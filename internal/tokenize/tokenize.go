// Package tokenize implements stract's three registered tokenizers:
// Default (word-splitting + lowercase), Stemmed (English stemming on top
// of Default), and Identity (value-as-token, used for URL/host exact
// match).
//
// Grounded on the teacher's internal/store/tokenizer.go (regex word
// splitting, lowercasing, stopword filtering) generalized from
// code-identifier tokenization to web text, with English stemming
// delegated to github.com/blevesearch/go-porterstemmer, a transitive
// dependency of bleve already present in the teacher's module graph.
package tokenize

import (
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"

	"github.com/nonomal/stract/internal/schema"
)

// wordRegex matches runs of letters/digits, splitting on everything else
// (whitespace, punctuation, HTML-adjacent noise).
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize splits and lowercases s according to kind.
func Tokenize(kind schema.TokenizerKind, s string) []string {
	switch kind {
	case schema.Identity:
		return []string{strings.ToLower(strings.TrimSpace(s))}
	case schema.Stemmed:
		return stem(defaultTokens(s))
	default:
		return defaultTokens(s)
	}
}

func defaultTokens(s string) []string {
	words := wordRegex.FindAllString(s, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

func stem(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = porterstemmer.StemString(t)
	}
	return out
}

// FilterStopwords removes any token present in the stopword set. Title
// matching drops stopwords; body and phrase matching keep them (spec.md
// §3, Tokenizers).
func FilterStopwords(tokens []string, n int) []string {
	stop := stopwordSet(n)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, isStop := stop[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}
