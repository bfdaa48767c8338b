// Package errkind classifies the errors that cross the core's service
// boundary (postings store, collector, DHT) into a small closed set of
// kinds so that callers can branch on failure mode without parsing
// strings.
package errkind

import "fmt"

// Kind is a closed enumeration of the error kinds the core surfaces, per
// the error handling design.
type Kind string

const (
	// Parse indicates a malformed query or configuration file.
	Parse Kind = "parse"
	// Schema indicates a document is missing a required field or carries
	// a value of the wrong type.
	Schema Kind = "schema"
	// IO indicates a disk read/write or memory-map creation failed.
	IO Kind = "io"
	// Corrupt indicates segment metadata or an on-disk structure could
	// not be read.
	Corrupt Kind = "corrupt"
	// GoneDoc indicates a DocAddress refers to a segment that has since
	// been merged away.
	GoneDoc Kind = "gone_doc"
	// Timeout indicates an operation exceeded its deadline.
	Timeout Kind = "timeout"
	// NoLeader indicates a Raft shard currently has no leader.
	NoLeader Kind = "no_leader"
	// NotInMembers indicates a node attempted an operation without being
	// a member of the relevant Raft group.
	NotInMembers Kind = "not_in_members"
	// AlreadyInitialized indicates a Raft group has already been
	// initialized with a membership set.
	AlreadyInitialized Kind = "already_initialized"
	// Conflict indicates two segments collided on a filename during a
	// merge.
	Conflict Kind = "conflict"
)

// Error wraps an underlying cause with one of the closed Kind values.
type Error struct {
	kind Kind
	op   string
	err  error
}

// New constructs an Error for op failing with kind, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{kind: kind, op: op, err: err}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.op, e.kind, e.err)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's closed classification.
func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is(err, errkind.Of(errkind.Parse)) work by comparing
// kinds whenever the target is itself an *Error; any other target never
// matches.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

// Of returns a sentinel *Error carrying only a Kind, suitable for use with
// errors.Is(err, errkind.Of(errkind.Timeout)).
func Of(kind Kind) *Error {
	return &Error{kind: kind}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if asError(err, &e) {
		return e.kind, true
	}
	return "", false
}

// asError is a tiny local errors.As to avoid importing errors just for this.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
