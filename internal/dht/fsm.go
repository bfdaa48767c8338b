package dht

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/nonomal/stract/internal/errkind"
)

// stateMachine is the single-shard Raft FSM: a mapping table → (key →
// value) with the set of known tables, applied under one mutex per
// spec.md §4.5 ("Applying a request executes it against this map under
// a single mutex; snapshots serialize the full state").
type stateMachine struct {
	mu       sync.RWMutex
	tables   map[string]map[string][]byte
	registry *registry
}

func newStateMachine(reg *registry) *stateMachine {
	return &stateMachine{
		tables:   make(map[string]map[string][]byte),
		registry: reg,
	}
}

// Apply decodes one Raft log entry and executes it against the state
// map, returning an *applyResult that carries the resulting value for
// Upsert and is otherwise empty unless Err is set.
func (s *stateMachine) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := gob.NewDecoder(bytes.NewReader(l.Data)).Decode(&cmd); err != nil {
		return &applyResult{Err: errkind.New(errkind.Corrupt, "Apply", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Op {
	case OpCreateTable:
		if _, ok := s.tables[cmd.Table]; !ok {
			s.tables[cmd.Table] = make(map[string][]byte)
		}
		return &applyResult{}

	case OpDropTable:
		delete(s.tables, cmd.Table)
		return &applyResult{}

	case OpCloneTable:
		src, ok := s.tables[cmd.SourceTable]
		if !ok {
			return &applyResult{Err: errkind.New(errkind.Schema, "Apply", fmt.Errorf("clone_table: source table %q does not exist", cmd.SourceTable))}
		}
		dst := make(map[string][]byte, len(src))
		for k, v := range src {
			cp := make([]byte, len(v))
			copy(cp, v)
			dst[k] = cp
		}
		s.tables[cmd.Table] = dst
		return &applyResult{}

	case OpSet:
		t := s.tableLocked(cmd.Table)
		t[string(cmd.Key)] = cmd.Value
		return &applyResult{}

	case OpBatchSet:
		t := s.tableLocked(cmd.Table)
		for _, p := range cmd.Pairs {
			t[string(p.Key)] = p.Value
		}
		return &applyResult{}

	case OpUpsert:
		t := s.tableLocked(cmd.Table)
		fn, err := s.registry.lookup(cmd.UpsertID)
		if err != nil {
			return &applyResult{Err: errkind.New(errkind.Parse, "Apply", err)}
		}
		existing, had := t[string(cmd.Key)]
		var existingArg []byte
		if had {
			existingArg = existing
		}
		merged := fn(existingArg, cmd.Value)
		t[string(cmd.Key)] = merged
		return &applyResult{Value: merged}

	case OpBatchUpsert:
		t := s.tableLocked(cmd.Table)
		fn, err := s.registry.lookup(cmd.UpsertID)
		if err != nil {
			return &applyResult{Err: errkind.New(errkind.Parse, "Apply", err)}
		}
		for _, triple := range cmd.Triples {
			var existingArg []byte
			if existing, had := t[string(triple.Key)]; had {
				existingArg = existing
			}
			t[string(triple.Key)] = fn(existingArg, triple.Value)
		}
		return &applyResult{}

	default:
		return &applyResult{Err: errkind.New(errkind.Parse, "Apply", fmt.Errorf("unknown op %d", cmd.Op))}
	}
}

func (s *stateMachine) tableLocked(name string) map[string][]byte {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string][]byte)
		s.tables[name] = t
	}
	return t
}

// get serves a linearized-enough read directly from the in-memory map,
// bypassing Raft (spec.md §4.5: "Reads are served from the state machine
// without a full Raft round").
func (s *stateMachine) get(table string, key []byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	v, ok := t[string(key)]
	return v, ok
}

func (s *stateMachine) batchGet(table string, keys [][]byte) map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte)
	t, ok := s.tables[table]
	if !ok {
		return out
	}
	for _, k := range keys {
		if v, ok := t[string(k)]; ok {
			out[string(k)] = v
		}
	}
	return out
}

func (s *stateMachine) allTables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	return out
}

// streamSnapshot copies out the full key/value set of table at the time
// of the call; the server-side cursor built over it is invalidated by
// any concurrent mutation of the same table (spec.md §4.5, stream: "a
// lazy sequence ... restartable only if the table is not mutated
// concurrently").
func (s *stateMachine) streamSnapshot(table string) []KV {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	out := make([]KV, 0, len(t))
	for k, v := range t {
		out = append(out, KV{Key: []byte(k), Value: v})
	}
	return out
}

// fsmSnapshot implements raft.FSMSnapshot: a point-in-time gob encoding
// of the full table map, persisted to the configured SnapshotStore.
type fsmSnapshot struct {
	tables map[string]map[string][]byte
}

// Snapshot captures a deep copy of the current state for Raft to
// persist asynchronously while writes continue to apply.
func (s *stateMachine) Snapshot() (raft.FSMSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]map[string][]byte, len(s.tables))
	for table, kvs := range s.tables {
		tc := make(map[string][]byte, len(kvs))
		for k, v := range kvs {
			tc[k] = append([]byte(nil), v...)
		}
		snap[table] = tc
	}
	return &fsmSnapshot{tables: snap}, nil
}

func (f *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	enc := gob.NewEncoder(sink)
	if err := enc.Encode(f.tables); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (f *fsmSnapshot) Release() {}

// Restore replaces the in-memory state atomically from a previously
// persisted snapshot (spec.md §4.5, "Snapshot install: in-memory state
// is replaced atomically; streams in progress are invalidated and must
// be restarted").
func (s *stateMachine) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var tables map[string]map[string][]byte
	if err := gob.NewDecoder(rc).Decode(&tables); err != nil {
		return errkind.New(errkind.Corrupt, "Restore", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
	return nil
}
