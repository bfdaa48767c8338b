// Package webgraph is a minimal compact id↔host table over a single
// bbolt database file, storing the forward and backward edge sets a
// centrality computation walks. It is not one of the spec's named
// modules — it's supplemental, grounded in
// original_source/crates/core/src/webgraph/id_node_db.rs, which assigns
// compact u64 node ids to host strings and keeps forward/back edges in
// separate buckets to avoid in-memory pointer cycles.
//
// Bucket layout, following the BoltDB-backed design the other_examples
// pack describes for cluster state (one bucket per concern, composite
// keys for edge sets rather than a value holding a whole adjacency
// list):
//
//	nodes  host string        -> id (8-byte big-endian)
//	hosts  id (8-byte BE)      -> host string
//	fwd    id(8) ++ id(8)      -> empty  (from -> to)
//	back   id(8) ++ id(8)      -> empty  (to -> from)
//	meta   "next_id"           -> next unassigned id (8-byte BE)
package webgraph

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/nonomal/stract/internal/errkind"
)

var (
	bucketNodes = []byte("nodes")
	bucketHosts = []byte("hosts")
	bucketFwd   = []byte("fwd")
	bucketBack  = []byte("back")
	bucketMeta  = []byte("meta")
	keyNextID   = []byte("next_id")
)

// Graph is a bbolt-backed id↔host table with forward/backward edge
// sets.
type Graph struct {
	db *bolt.DB
}

// Open opens (creating if absent) the webgraph database at path.
func Open(path string) (*Graph, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errkind.New(errkind.IO, "webgraph.Open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketNodes, bucketHosts, bucketFwd, bucketBack, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errkind.New(errkind.IO, "webgraph.Open", err)
	}
	return &Graph{db: db}, nil
}

// Close closes the underlying database file.
func (g *Graph) Close() error { return g.db.Close() }

// NodeID returns host's compact id, assigning a fresh one on first
// sight.
func (g *Graph) NodeID(host string) (uint64, error) {
	var id uint64
	err := g.db.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		if existing := nodes.Get([]byte(host)); existing != nil {
			id = binary.BigEndian.Uint64(existing)
			return nil
		}

		meta := tx.Bucket(bucketMeta)
		next := uint64(0)
		if raw := meta.Get(keyNextID); raw != nil {
			next = binary.BigEndian.Uint64(raw)
		}
		id = next

		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], id)
		if err := nodes.Put([]byte(host), idBuf[:]); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHosts).Put(idBuf[:], []byte(host)); err != nil {
			return err
		}

		var nextBuf [8]byte
		binary.BigEndian.PutUint64(nextBuf[:], next+1)
		return meta.Put(keyNextID, nextBuf[:])
	})
	if err != nil {
		return 0, errkind.New(errkind.IO, "NodeID", err)
	}
	return id, nil
}

// Host returns the host string for id, if known.
func (g *Graph) Host(id uint64) (string, bool) {
	var host string
	var found bool
	_ = g.db.View(func(tx *bolt.Tx) error {
		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], id)
		if raw := tx.Bucket(bucketHosts).Get(idBuf[:]); raw != nil {
			host = string(raw)
			found = true
		}
		return nil
	})
	return host, found
}

// AddEdge records a forward edge from -> to and its mirrored backward
// entry. Idempotent: recording the same edge twice is a no-op.
func (g *Graph) AddEdge(from, to uint64) error {
	key := edgeKey(from, to)
	rkey := edgeKey(to, from)
	err := g.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFwd).Put(key, nil); err != nil {
			return err
		}
		return tx.Bucket(bucketBack).Put(rkey, nil)
	})
	if err != nil {
		return errkind.New(errkind.IO, "AddEdge", err)
	}
	return nil
}

// OutEdges lists every id that from has a recorded forward edge to.
func (g *Graph) OutEdges(from uint64) ([]uint64, error) {
	return g.scanEdges(bucketFwd, from)
}

// InEdges lists every id that has a recorded forward edge into to.
func (g *Graph) InEdges(to uint64) ([]uint64, error) {
	return g.scanEdges(bucketBack, to)
}

func (g *Graph) scanEdges(bucket []byte, id uint64) ([]uint64, error) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], id)

	var out []uint64
	err := g.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix[:]); k != nil && hasPrefix(k, prefix[:]); k, _ = c.Next() {
			if len(k) != 16 {
				return fmt.Errorf("webgraph: malformed edge key %x", k)
			}
			out = append(out, binary.BigEndian.Uint64(k[8:]))
		}
		return nil
	})
	if err != nil {
		return nil, errkind.New(errkind.Corrupt, "scanEdges", err)
	}
	return out, nil
}

func edgeKey(a, b uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], a)
	binary.BigEndian.PutUint64(key[8:], b)
	return key
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
