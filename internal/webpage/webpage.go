// Package webpage holds the core entity types shared across the
// postings store, collector and ranker: documents, addresses, bucket
// hashes and the materialized retrieval view (spec.md §3).
package webpage

import "github.com/nonomal/stract/internal/schema"

// DocAddress identifies a document within a single index snapshot. It is
// not stable across merges.
type DocAddress struct {
	SegmentOrd uint32
	DocID      uint32
}

// Hashes carries the five bucket keys used by the collector's
// de-duplication axes: site, title, url, url-without-tld and the
// near-duplicate simhash fingerprint.
type Hashes struct {
	Site          schema.Prehashed
	Title         schema.Prehashed
	Url           schema.Prehashed
	UrlWithoutTld schema.Prehashed
	SimHash       uint64
}

// Score is the per-document score produced by the signal computer; Total
// drives the collector, Signals (when requested) carries the per-signal
// breakdown for diagnostics.
type Score struct {
	Total   float64
	Signals []SignalScore
}

// SignalScore is one named signal's contribution to a Score.
type SignalScore struct {
	Name        string
	Value       float64
	Coefficient float64
}

// WebpagePointer is the minimal ranked hit carried across retrieval
// stages: score, bucket hashes, and the address needed to fetch the
// stored document.
type WebpagePointer struct {
	Score   Score
	Hashes  Hashes
	Address DocAddress
}

// RetrievedWebpage is the materialized view of a document after
// retrieval and snippet generation.
type RetrievedWebpage struct {
	Title           string
	Url             string
	Body            string
	Description     string
	DmozDescription string
	Snippet         string
	PrimaryImage    []byte
	UpdatedTime     uint64
	Region          uint64
	Topic           string
	SchemaOrgJson   string

	// TitleTerms and DescriptionTerms back the image-relevance filter:
	// PrimaryImage is suppressed unless a query term appears in their
	// union (spec.md §3, RetrievedWebpage).
	TitleTerms       map[string]struct{}
	DescriptionTerms map[string]struct{}
}

// SuppressUnrelatedImage clears PrimaryImage unless every one of
// queryTerms appears in TitleTerms ∪ DescriptionTerms (spec.md §3,
// RetrievedWebpage).
func (w *RetrievedWebpage) SuppressUnrelatedImage(queryTerms []string) {
	if len(w.PrimaryImage) == 0 {
		return
	}
	for _, t := range queryTerms {
		_, inTitle := w.TitleTerms[t]
		_, inDescription := w.DescriptionTerms[t]
		if !inTitle && !inDescription {
			w.PrimaryImage = nil
			return
		}
	}
}

// Document is a fully-populated, not-yet-indexed webpage matching the
// schema. The postings store rejects documents missing required text
// fields.
type Document struct {
	Title            string
	AllBody          string
	CleanBody        string
	StemmedCleanBody string
	Url              string
	Description      string
	DmozDescription  string
	HostTopic        string
	PrimaryImage     []byte
	SchemaOrgJson    string

	PreComputedScore   float64
	LastUpdated        uint64
	Region             uint64
	HostNodeID         uint64
	SimHash            uint64
	SiteHash           schema.Prehashed
	UrlHash            schema.Prehashed
	UrlWithoutTldHash  schema.Prehashed
	TitleHash          schema.Prehashed
}

// RequiredTextFields lists the text fields every Document must populate;
// the postings store's insert rejects documents missing any of these
// (spec.md §4.1, insert).
func RequiredTextFields() []schema.TextField {
	return []schema.TextField{schema.Title, schema.Url, schema.AllBody}
}

// Validate reports the first missing required field, or nil if doc
// satisfies the schema.
func (d *Document) Validate() error {
	if d.Title == "" {
		return missingField(schema.Title)
	}
	if d.Url == "" {
		return missingField(schema.Url)
	}
	if d.AllBody == "" {
		return missingField(schema.AllBody)
	}
	return nil
}

type missingFieldError struct{ field schema.TextField }

func (e missingFieldError) Error() string {
	return "missing required field: " + e.field.Name()
}

func missingField(f schema.TextField) error { return missingFieldError{field: f} }
