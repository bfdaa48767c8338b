package postings

import (
	"strconv"

	"github.com/blevesearch/bleve/v2"

	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

// exactU64 encodes a 64-bit value as a decimal string so it survives a
// round trip through bleve's stored (non-numeric) field storage without
// the precision loss a float64 mapping would introduce.
func exactU64(v uint64) string { return strconv.FormatUint(v, 10) }

// parseExactU64 decodes a value written by exactU64, returning 0 if
// fields lacks the key or it is not a well-formed decimal string.
func parseExactU64(fields map[string]interface{}, f schema.FastField) uint64 {
	v, ok := fields[f.Name()]
	if !ok {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// bleveDoc is the flat map shape indexed for every webpage.Document: one
// key per schema field, named identically to its mapping so
// buildMapping's per-field analyzers apply.
type bleveDoc map[string]interface{}

func toBleveDoc(doc *webpage.Document) bleveDoc {
	return bleveDoc{
		schema.Title.Name():            doc.Title,
		schema.AllBody.Name():          doc.AllBody,
		schema.CleanBody.Name():        doc.CleanBody,
		schema.StemmedCleanBody.Name(): doc.StemmedCleanBody,
		schema.Url.Name():              doc.Url,
		schema.Description.Name():      doc.Description,
		schema.DmozDescription.Name():  doc.DmozDescription,
		schema.HostTopic.Name():        doc.HostTopic,
		schema.PrimaryImage.Name():     string(doc.PrimaryImage),
		schema.SchemaOrgJson.Name():    doc.SchemaOrgJson,

		schema.PreComputedScore.Name(): doc.PreComputedScore,
		schema.LastUpdated.Name():      float64(doc.LastUpdated),
		schema.Region.Name():           float64(doc.Region),

		schema.HostNodeID.Name():         exactU64(doc.HostNodeID),
		schema.SimHash.Name():            exactU64(doc.SimHash),
		schema.SiteHash1.Name():          exactU64(doc.SiteHash.Hi),
		schema.SiteHash2.Name():          exactU64(doc.SiteHash.Lo),
		schema.UrlHash1.Name():           exactU64(doc.UrlHash.Hi),
		schema.UrlHash2.Name():           exactU64(doc.UrlHash.Lo),
		schema.UrlWithoutTldHash1.Name(): exactU64(doc.UrlWithoutTldHash.Hi),
		schema.UrlWithoutTldHash2.Name(): exactU64(doc.UrlWithoutTldHash.Lo),
		schema.TitleHash1.Name():         exactU64(doc.TitleHash.Hi),
		schema.TitleHash2.Name():         exactU64(doc.TitleHash.Lo),
	}
}

func newMatchAllSortedByScore(size int) *bleve.SearchRequest {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = size
	req.Fields = []string{schema.PreComputedScore.Name()}
	return req
}
