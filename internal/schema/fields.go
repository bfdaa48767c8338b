// Package schema defines the fixed, enumerated field set shared by every
// segment in an index: tokenized text fields and numeric "fast" (column)
// fields materialized for sorting and scoring.
//
// Grounded on original_source/crates/core/src/schema/mod.rs: a Field sum
// type over TextFieldEnum and FastFieldEnum, each with name/indexing
// metadata, combined into one bleve field mapping per schema field.
package schema

// TextField enumerates the tokenized, optionally-stored text fields.
type TextField int

const (
	Title TextField = iota
	AllBody
	CleanBody
	StemmedCleanBody
	Url
	Description
	DmozDescription
	HostTopic
	PrimaryImage
	SchemaOrgJson
	numTextFields
)

var textFieldNames = [numTextFields]string{
	Title:            "title",
	AllBody:          "all_body",
	CleanBody:        "clean_body",
	StemmedCleanBody: "stemmed_clean_body",
	Url:              "url",
	Description:      "description",
	DmozDescription:  "dmoz_description",
	HostTopic:        "host_topic",
	PrimaryImage:     "primary_image",
	SchemaOrgJson:    "schema_org_json",
}

// Name returns the field's on-disk/bleve-mapping name.
func (f TextField) Name() string { return textFieldNames[f] }

// HasPositions reports whether the field is indexed with position
// information, required for phrase queries.
func (f TextField) HasPositions() bool {
	switch f {
	case Title, AllBody, CleanBody, StemmedCleanBody, Url, Description:
		return true
	default:
		return false
	}
}

// IsStored reports whether the field's raw value is retrievable (as
// opposed to indexed-only).
func (f TextField) IsStored() bool {
	switch f {
	case Title, Url, Description, DmozDescription, PrimaryImage, SchemaOrgJson, HostTopic:
		return true
	default:
		return false
	}
}

// Tokenizer returns the tokenizer this field is analyzed with. Url uses
// Default rather than Identity: get_webpage's exact-match phrase query
// and a bare word like "dr" matching a host both rely on the same
// word-split analysis applying consistently to both the indexed field
// and the query text (spec.md §4.1, get_webpage: "tokenize the exact
// URL via the Default tokenizer").
func (f TextField) Tokenizer() TokenizerKind {
	switch f {
	case StemmedCleanBody:
		return Stemmed
	default:
		return Default
	}
}

// AllTextFields returns every registered text field.
func AllTextFields() []TextField {
	out := make([]TextField, numTextFields)
	for i := range out {
		out[i] = TextField(i)
	}
	return out
}

// TokenizerKind names one of the three registered tokenizers.
type TokenizerKind int

const (
	// Default splits on word boundaries and lowercases.
	Default TokenizerKind = iota
	// Stemmed runs Default then English (Porter) stemming.
	Stemmed
	// Identity treats the whole value as a single token, used for exact
	// URL/host matching.
	Identity
)

// FastField enumerates the per-document numeric column fields
// materialized for sorting and scoring.
type FastField int

const (
	PreComputedScore FastField = iota
	LastUpdated
	Region
	HostNodeID
	SimHash
	SiteHash1
	SiteHash2
	UrlHash1
	UrlHash2
	UrlWithoutTldHash1
	UrlWithoutTldHash2
	TitleHash1
	TitleHash2
	numFastFields
)

var fastFieldNames = [numFastFields]string{
	PreComputedScore:   "pre_computed_score",
	LastUpdated:        "last_updated",
	Region:             "region",
	HostNodeID:         "host_node_id",
	SimHash:            "simhash",
	SiteHash1:          "site_hash_1",
	SiteHash2:          "site_hash_2",
	UrlHash1:           "url_hash_1",
	UrlHash2:           "url_hash_2",
	UrlWithoutTldHash1: "url_without_tld_hash_1",
	UrlWithoutTldHash2: "url_without_tld_hash_2",
	TitleHash1:         "title_hash_1",
	TitleHash2:         "title_hash_2",
}

// Name returns the field's on-disk/bleve-mapping name.
func (f FastField) Name() string { return fastFieldNames[f] }

// IsExactU64 reports whether a fast field must round-trip a full 64-bit
// value exactly. Bleve's numeric field mapping stores values as float64,
// which cannot represent every uint64 losslessly; hashes and opaque IDs
// are instead stored as decimal strings (see postings.bleve_doc.go),
// while genuinely-numeric fields (scores, timestamps, small enum ids)
// use bleve's native numeric mapping for sorting.
func (f FastField) IsExactU64() bool {
	switch f {
	case PreComputedScore, LastUpdated, Region:
		return false
	default:
		return true
	}
}

// AllFastFields returns every registered fast field.
func AllFastFields() []FastField {
	out := make([]FastField, numFastFields)
	for i := range out {
		out[i] = FastField(i)
	}
	return out
}

// HostNodeIDUnknown is the sentinel meaning "no host node associated".
const HostNodeIDUnknown uint64 = ^uint64(0)

// SortField is the segment-internal primary sort key: every segment is
// sorted by PreComputedScore descending (invariant I2 in spec.md §3).
const SortField = PreComputedScore
