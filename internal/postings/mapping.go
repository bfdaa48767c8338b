package postings

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/tokenize"
)

// Tokenizer names registered with bleve's registry. One per
// schema.TokenizerKind, plus a dedicated title tokenizer that additionally
// drops the full stopword list (spec.md §3, Tokenizers).
const (
	tokenizerDefault  = "stract_default"
	tokenizerStemmed  = "stract_stemmed"
	tokenizerIdentity = "stract_identity"
	tokenizerTitle    = "stract_title"
)

var registerOnce sync.Once

// wordTokenizer adapts internal/tokenize's pure word-splitting into
// bleve's analysis.Tokenizer interface, the same seam the teacher's
// custom code tokenizer used (internal/store/bm25.go,
// codeTokenizerConstructor), generalized from identifier splitting to web
// text and from a single kind to all three registered tokenizers.
type wordTokenizer struct {
	kind          schema.TokenizerKind
	dropStopwords bool
}

func (t wordTokenizer) Tokenize(input []byte) analysis.TokenStream {
	words := tokenize.Tokenize(t.kind, string(input))
	if t.dropStopwords {
		words = tokenize.FilterStopwords(words, 0)
	}

	stream := make(analysis.TokenStream, 0, len(words))
	for i, w := range words {
		stream = append(stream, &analysis.Token{
			Term:     []byte(w),
			Start:    0,
			End:      len(w),
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

func registerTokenizers() {
	registerOnce.Do(func() {
		mustRegister(tokenizerDefault, schema.Default, false)
		mustRegister(tokenizerStemmed, schema.Stemmed, false)
		mustRegister(tokenizerIdentity, schema.Identity, false)
		mustRegister(tokenizerTitle, schema.Default, true)
	})
}

func mustRegister(name string, kind schema.TokenizerKind, dropStopwords bool) {
	err := registry.RegisterTokenizer(name, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
		return wordTokenizer{kind: kind, dropStopwords: dropStopwords}, nil
	})
	if err != nil {
		panic("postings: tokenizer already registered: " + name)
	}
}

// analyzerFor returns the bleve analyzer name backing a text field's
// tokenizer, special-casing Title to additionally drop stopwords.
func analyzerFor(f schema.TextField) string {
	if f == schema.Title {
		return tokenizerTitle
	}
	switch f.Tokenizer() {
	case schema.Stemmed:
		return tokenizerStemmed
	case schema.Identity:
		return tokenizerIdentity
	default:
		return tokenizerDefault
	}
}

// buildMapping constructs the bleve index mapping shared by every
// segment: one field mapping per schema.TextField plus one stored mapping
// per schema.FastField (numeric with doc values, or, for IsExactU64
// fields, an unindexed text mapping holding exactU64's decimal string),
// mirroring how
// original_source/crates/core/src/schema/mod.rs's create_schema iterates
// Field::all().
func buildMapping() (*mapping.IndexMappingImpl, error) {
	registerTokenizers()

	im := bleve.NewIndexMapping()
	for _, name := range []string{tokenizerDefault, tokenizerStemmed, tokenizerIdentity, tokenizerTitle} {
		err := im.AddCustomAnalyzer(name, map[string]interface{}{
			"type":      custom.Name,
			"tokenizer": name,
		})
		if err != nil {
			return nil, fmt.Errorf("register analyzer %s: %w", name, err)
		}
	}

	doc := bleve.NewDocumentMapping()

	for _, f := range schema.AllTextFields() {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerFor(f)
		fm.Store = f.IsStored()
		fm.IncludeInAll = false
		fm.IncludeTermVectors = f.HasPositions()
		doc.AddFieldMappingsAt(f.Name(), fm)
	}

	for _, f := range schema.AllFastFields() {
		if f.IsExactU64() {
			fm := bleve.NewTextFieldMapping()
			fm.Store = true
			fm.Index = false
			fm.IncludeInAll = false
			doc.AddFieldMappingsAt(f.Name(), fm)
			continue
		}

		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		fm.DocValues = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f.Name(), fm)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = tokenizerDefault
	return im, nil
}
