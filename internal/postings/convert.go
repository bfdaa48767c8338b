package postings

import (
	"strings"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

// documentToWebpage builds a RetrievedWebpage from a bleve hit's Fields
// map (populated when a search request asks for Fields: []string{"*"}).
func documentToWebpage(fields map[string]interface{}) *webpage.RetrievedWebpage {
	rw := &webpage.RetrievedWebpage{
		Title:           stringField(fields, schema.Title),
		Url:             stringField(fields, schema.Url),
		Body:            stringField(fields, schema.AllBody),
		Description:     stringField(fields, schema.Description),
		DmozDescription: stringField(fields, schema.DmozDescription),
		PrimaryImage:    []byte(stringField(fields, schema.PrimaryImage)),
		Topic:           stringField(fields, schema.HostTopic),
		SchemaOrgJson:   stringField(fields, schema.SchemaOrgJson),
		UpdatedTime:     uint64(numericField(fields, schema.LastUpdated)),
		Region:          uint64(numericField(fields, schema.Region)),
	}

	rw.TitleTerms = termSet(rw.Title)
	rw.DescriptionTerms = termSet(rw.Description)

	// PrimaryImage is suppressed at retrieval time unless a query term
	// appears in title_terms ∪ description_terms; without a query in
	// scope here it is left populated and callers apply the filter via
	// webpage.RetrievedWebpage.SuppressUnrelatedImage (internal/search).
	return rw
}

// HashesFromFields reconstructs a document's bucket hashes from a bleve
// hit's Fields map, for callers (internal/search) building a
// webpage.WebpagePointer from raw search results.
func HashesFromFields(fields map[string]interface{}) webpage.Hashes {
	return webpage.Hashes{
		Site:          schema.CombineU64s(parseExactU64(fields, schema.SiteHash1), parseExactU64(fields, schema.SiteHash2)),
		Title:         schema.CombineU64s(parseExactU64(fields, schema.TitleHash1), parseExactU64(fields, schema.TitleHash2)),
		Url:           schema.CombineU64s(parseExactU64(fields, schema.UrlHash1), parseExactU64(fields, schema.UrlHash2)),
		UrlWithoutTld: schema.CombineU64s(parseExactU64(fields, schema.UrlWithoutTldHash1), parseExactU64(fields, schema.UrlWithoutTldHash2)),
		SimHash:       parseExactU64(fields, schema.SimHash),
	}
}

func stringField(fields map[string]interface{}, f schema.TextField) string {
	v, ok := fields[f.Name()]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func numericField(fields map[string]interface{}, f schema.FastField) float64 {
	v, ok := fields[f.Name()]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	default:
		return 0
	}
}

func termSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}
