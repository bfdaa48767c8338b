// Package wire is the client-facing RPC surface for internal/dht: a
// small length-prefixed frame codec over net.Conn carrying gob-encoded
// Request/Response pairs, used for every operation in the wire tag set
// from spec.md §6 ("Cluster wire surface") — Set, BatchSet, Upsert,
// BatchUpsert, CreateTable, DropTable, AllTables, CloneTable, Get,
// BatchGet, Stream, Join.
//
// net/rpc is deliberately not used: it forces a one-method-per-RPC Go
// interface and gob-only registration awkward for a single dispatch
// enum, where a hand-rolled frame (matching the length-prefix-plus-body
// shape hashicorp/raft's own raft.NetworkTransport uses internally for
// its StreamLayer) is a direct, obvious fit. Raft's own inter-node
// replication traffic does not use this package — it runs over
// raft.NewTCPTransport directly, set up by internal/dht.OpenCluster.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/nonomal/stract/internal/dht"
)

// Request is one client call, addressed to a single node.
type Request struct {
	Op          dht.OpTag
	Table       string
	SourceTable string
	Key         []byte
	Value       []byte
	Keys        [][]byte
	Pairs       []dht.KV
	Triples     []dht.UpsertTriple
	UpsertID    string

	// MinIndex, when non-zero, asks the server to block a Get until its
	// local shard has applied at least this Raft log index before
	// serving the read — the receiving side of the ensure-linearized-read
	// convention (spec.md §4.5).
	MinIndex uint64

	// Join addresses a single shard by ordinal, since joining is a
	// per-Raft-group operation rather than a content-routed one.
	ShardIndex int
	NodeID     string
	Address    string
}

// Response is one server reply.
type Response struct {
	OK    bool
	Err   string
	Kind  string
	Value []byte
	Found bool
	// LeaderHint carries the known leader address when Kind is
	// "no_leader", so the client can retry directly against it (spec.md
	// §4.5, Failure semantics: "clients retry with backoff against other
	// members").
	LeaderHint string
	Values     map[string][]byte
	Pairs      []dht.KV
	Tables     []string
	// Index is the Raft log index the write committed at, used by
	// EnsureLinearizedRead to derive the MinIndex for a follow-up Get.
	Index uint64
}

func init() {
	gob.Register(Request{})
	gob.Register(Response{})
}

// writeFrame writes a 4-byte big-endian length prefix followed by v
// gob-encoded.
func writeFrame(w io.Writer, v interface{}) error {
	enc, err := gobEncode(v)
	if err != nil {
		return err
	}
	if len(enc) > 1<<30 {
		return fmt.Errorf("wire: frame too large (%d bytes)", len(enc))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(enc)
	return err
}

// readFrame reads one length-prefixed frame and gob-decodes it into v.
func readFrame(r io.Reader, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return gobDecode(buf, v)
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
