package dht

import (
	"bytes"
	"encoding/gob"
)

// encodeCommand gob-encodes cmd for submission as a Raft log entry.
func encodeCommand(cmd command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OpTag enumerates the request/Raft-log command tags the DHT speaks,
// matching the wire request tag set in spec.md §6 ("Cluster wire
// surface"): Set, BatchSet, Upsert, BatchUpsert, CreateTable, DropTable,
// AllTables, CloneTable, Get, BatchGet, Stream, Join.
type OpTag uint8

const (
	OpSet OpTag = iota
	OpBatchSet
	OpUpsert
	OpBatchUpsert
	OpCreateTable
	OpDropTable
	OpAllTables
	OpCloneTable
	OpGet
	OpBatchGet
	OpStream
	OpJoin
)

// KV is one key/value pair, used by BatchSet/BatchGet/Stream.
type KV struct {
	Key   []byte
	Value []byte
}

// UpsertTriple is one (key, value, merge-function-id) entry for
// BatchUpsert.
type UpsertTriple struct {
	Key      []byte
	Value    []byte
	UpsertID string
}

// command is the payload applied to the FSM through Raft; it is encoded
// with encoding/gob for the log entry (spec.md §10: "state machine ...
// applying a request executes it against this map under a single
// mutex"). Only write and table-lifecycle operations ever reach Apply;
// Get/BatchGet/Stream/AllTables are served directly from the FSM's
// in-memory map and never replicated as log entries.
type command struct {
	Op    OpTag
	Table string

	// Set / Upsert
	Key      []byte
	Value    []byte
	UpsertID string

	// BatchSet / BatchUpsert
	Pairs   []KV
	Triples []UpsertTriple

	// CloneTable
	SourceTable string
}

// applyResult is what Apply returns via raft.ApplyFuture.Response(): the
// new value for Upsert (the only op whose caller needs a result back),
// and an empty result for every other op, BatchUpsert included. Err is
// set whenever the command failed.
type applyResult struct {
	Value []byte
	Err   error
}
