// Package livendex wraps internal/postings.Index with the live-index
// variant spec.md §4.6 describes: a ticking maintenance loop (prune by
// TTL, auto-commit, compact by segment count) plus fsnotify-driven pickup of
// segments written by another process, and InSetup/Ready membership
// advertisement against the DHT so a query router can tell when a
// freshly-started node has finished its initial catch-up.
//
// Grounded on the teacher's background-loop shape (a ticker-driven
// maintenance goroutine logging each pass) generalized to this index's
// segment lifecycle, and on original_source/crates/core's live-index
// design note for the tick/TTL/compaction behavior itself.
package livendex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/errkind"
	"github.com/nonomal/stract/internal/postings"
)

// Membership is the DHT-backed presence table a Manager advertises
// InSetup/Ready state to. internal/dht.Client satisfies this.
type Membership interface {
	Set(table string, key, value []byte) (uint64, error)
}

const membershipTable = "live_index_members"

// State is a node's lifecycle phase within the live index cluster.
type State int32

const (
	// InSetup means the node is still loading/catching up and should
	// not yet receive query traffic.
	InSetup State = iota
	// Ready means the node has completed its initial catch-up.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "in_setup"
}

// Manager runs the maintenance loop and fsnotify watch for one
// postings.Index.
type Manager struct {
	idx        *postings.Index
	writer     *postings.Writer
	cfg        config.LiveIndexConfig
	path       string
	nodeID     string
	membership Membership
	watcher    *fsnotify.Watcher
	state      atomic.Int32
	log        *slog.Logger
}

// New builds a Manager over idx (backed by the directory at path) using
// cfg for tick/TTL/compaction tuning. membership may be nil, in which
// case state transitions are not advertised anywhere.
func New(idx *postings.Index, path string, nodeID string, cfg config.LiveIndexConfig, membership Membership, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{idx: idx, path: path, nodeID: nodeID, cfg: cfg, membership: membership, log: log}
}

// State returns the manager's current lifecycle phase.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	if m.membership == nil {
		return
	}
	if _, err := m.membership.Set(membershipTable, []byte(m.nodeID), []byte(s.String())); err != nil {
		m.log.Warn("livendex_membership_advertise_failed", slog.String("error", err.Error()))
	}
}

// Run starts the fsnotify watch and the tick loop, blocking until ctx
// is done. It marks the node Ready once the watch is established and
// at least one maintenance pass has completed, then transitions back to
// InSetup only on Close.
func (m *Manager) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errkind.New(errkind.IO, "Run", err)
	}
	m.watcher = watcher
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return errkind.New(errkind.IO, "Run", err)
	}

	m.setState(InSetup)
	m.runMaintenancePass()
	m.setState(Ready)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.handleFSEvent(ev)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("livendex_watch_error", slog.String("error", err.Error()))

		case <-ticker.C:
			m.runMaintenancePass()
		}
	}
}

// Close releases the fsnotify watch and any open writer.
func (m *Manager) Close() error {
	m.setState(InSetup)
	var firstErr error
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			firstErr = err
		}
	}
	if m.writer != nil {
		if err := m.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleFSEvent picks up a segment directory written by an external
// process: a Create event on a direct child of the index path triggers
// a ReloadSegment so this node's readers observe it without going
// through its own Writer (spec.md §4.6).
func (m *Manager) handleFSEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create == 0 {
		return
	}
	if filepath.Dir(ev.Name) != filepath.Clean(m.path) {
		return
	}
	id := filepath.Base(ev.Name)
	if id == "meta.json" || id == ".writer.lock" {
		return
	}
	if err := m.idx.ReloadSegment(id); err != nil {
		m.log.Warn("livendex_reload_segment_failed", slog.String("segment", id), slog.String("error", err.Error()))
		return
	}
	m.log.Info("livendex_segment_reloaded", slog.String("segment", id))
}

// runMaintenancePass performs one tick's worth of work: auto-commit any
// writer-pending documents, prune segments past their TTL, and merge
// segments down to a target count once there are many of them
// (spec.md §4.6).
func (m *Manager) runMaintenancePass() {
	if err := m.autoCommit(); err != nil {
		m.log.Warn("livendex_auto_commit_failed", slog.String("error", err.Error()))
	}
	if err := m.pruneByTTL(); err != nil {
		m.log.Warn("livendex_prune_failed", slog.String("error", err.Error()))
	}
	if err := m.compactByAge(); err != nil {
		m.log.Warn("livendex_compact_failed", slog.String("error", err.Error()))
	}
}

// Writer lazily opens and caches the manager's own writer for Insert
// calls between auto-commits.
func (m *Manager) Writer() (*postings.Writer, error) {
	if m.writer != nil {
		return m.writer, nil
	}
	w, err := m.idx.Writer(postings.DefaultWriterConfig())
	if err != nil {
		return nil, err
	}
	m.writer = w
	return w, nil
}

// autoCommit flushes the manager's own writer, if one is open, by
// calling Commit on every tick; Commit is a no-op when nothing is
// pending. cfg.AutoCommitInterval is not consulted.
func (m *Manager) autoCommit() error {
	if m.writer == nil {
		return nil
	}
	return m.writer.Commit()
}

// pruneByTTL removes every segment older than cfg.SegmentTTL. CreatedAt
// has whole-second resolution; it is compared against the current time
// at full precision.
func (m *Manager) pruneByTTL() error {
	if m.cfg.SegmentTTL <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-m.cfg.SegmentTTL)
	for _, sm := range m.idx.Segments() {
		if sm.CreatedAt == 0 || !time.Unix(sm.CreatedAt, 0).Before(cutoff) {
			continue
		}
		if err := m.idx.RemoveSegment(sm.ID); err != nil {
			return fmt.Errorf("prune segment %s: %w", sm.ID, err)
		}
		m.log.Info("livendex_segment_pruned", slog.String("segment", sm.ID))
	}
	return nil
}

// compactByAge merges all segments down to targetSegments once their
// count reaches compactionTrigger, rather than running
// merge_into_max_segments on every tick. Segment age is not consulted:
// segments are not grouped by creation date before merging.
func (m *Manager) compactByAge() error {
	const compactionTrigger = 32
	const targetSegments = 8

	if len(m.idx.Segments()) < compactionTrigger {
		return nil
	}
	return m.idx.MergeIntoMaxSegments(targetSegments)
}
