// Package dht implements the sharded, replicated key-value store used
// to coordinate distributed graph computations: one Raft group per
// shard, a table namespace, key routing by hash(key) mod shards, and the
// client-facing table API from spec.md §4.5.
//
// Grounded on hashicorp/raft's own documented usage pattern (one raft.Raft
// per replicated group, a FSM applying gob-encoded commands under a
// single mutex, raft-boltdb for the log/stable store) as referenced by
// _examples/other_examples/manifests/cuemby-warren's go.mod, the one pack
// repo that pairs hashicorp/raft with raft-boltdb + bbolt.
package dht

import "fmt"

// UpsertFunc merges an existing value (nil if absent) with a new value,
// returning the value to store. Upsert functions are identified by a
// stable id from a closed registry so every replica applies the same
// merge deterministically (spec.md §4.5, "Upsert function").
type UpsertFunc func(existing, next []byte) []byte

// registry is the closed set of upsert merge functions known to the
// state machine. Ids are stable strings chosen by callers registering a
// function; an unknown id at Apply time is a programmer error (the
// command that referenced it should never have been accepted).
type registry struct {
	funcs map[string]UpsertFunc
}

func newRegistry() *registry {
	r := &registry{funcs: make(map[string]UpsertFunc)}
	r.register("overwrite", func(_, next []byte) []byte { return next })
	r.register("keep-existing", func(existing, next []byte) []byte {
		if existing != nil {
			return existing
		}
		return next
	})
	r.register("append", func(existing, next []byte) []byte {
		if existing == nil {
			return next
		}
		out := make([]byte, 0, len(existing)+len(next))
		out = append(out, existing...)
		out = append(out, next...)
		return out
	})
	return r
}

func (r *registry) register(id string, fn UpsertFunc) {
	r.funcs[id] = fn
}

// Register adds a new named upsert function to the registry. It must be
// called identically (same id, equivalent function) on every replica
// before any command referencing id is applied, since the registry
// itself is not replicated — only the id is (spec.md §4.5).
func (r *registry) Register(id string, fn UpsertFunc) {
	r.funcs[id] = fn
}

func (r *registry) lookup(id string) (UpsertFunc, error) {
	fn, ok := r.funcs[id]
	if !ok {
		return nil, fmt.Errorf("dht: unknown upsert function %q", id)
	}
	return fn, nil
}
