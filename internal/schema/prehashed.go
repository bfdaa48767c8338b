package schema

// Prehashed is a 128-bit bucket key built by combining two 64-bit hashes
// of the same source string (e.g. the two halves of a site/url/title
// hash pair). A zero Prehashed means "missing" and must never be used to
// dedupe (invariant I5 in spec.md §3).
type Prehashed struct {
	Hi uint64
	Lo uint64
}

// IsMissing reports whether the key is the zero value.
func (p Prehashed) IsMissing() bool { return p.Hi == 0 && p.Lo == 0 }

// CombineU64s builds a Prehashed bucket key from two 64-bit hash halves,
// mirroring the Rust bloom::combine_u64s helper used by the collector.
func CombineU64s(a, b uint64) Prehashed {
	return Prehashed{Hi: a, Lo: b}
}
