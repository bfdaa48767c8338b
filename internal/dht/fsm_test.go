package dht

import (
	"io"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

// fakeSnapshotSink adapts an io.PipeWriter to raft.SnapshotSink for
// testing Snapshot/Restore without a real raft.SnapshotStore.
type fakeSnapshotSink struct {
	*io.PipeWriter
}

func (f *fakeSnapshotSink) ID() string    { return "test" }
func (f *fakeSnapshotSink) Cancel() error { return f.PipeWriter.Close() }

func newPipe() (io.ReadCloser, *io.PipeWriter) {
	r, w := io.Pipe()
	return r, w
}

func applyCmd(t *testing.T, fsm *stateMachine, cmd command) *applyResult {
	t.Helper()
	data, err := encodeCommand(cmd)
	require.NoError(t, err)
	res, ok := fsm.Apply(&raft.Log{Data: data}).(*applyResult)
	require.True(t, ok)
	return res
}

func TestFSMSetGet(t *testing.T) {
	fsm := newStateMachine(newRegistry())

	res := applyCmd(t, fsm, command{Op: OpSet, Table: "t", Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, res.Err)

	v, ok := fsm.get("t", []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	_, ok = fsm.get("t", []byte("missing"))
	require.False(t, ok)
}

func TestFSMBatchSetAndBatchGet(t *testing.T) {
	fsm := newStateMachine(newRegistry())

	res := applyCmd(t, fsm, command{Op: OpBatchSet, Table: "t", Pairs: []KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}})
	require.NoError(t, res.Err)

	out := fsm.batchGet("t", [][]byte{[]byte("a"), []byte("b"), []byte("missing")})
	require.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, out)
}

func TestFSMUpsertOverwrite(t *testing.T) {
	fsm := newStateMachine(newRegistry())

	applyCmd(t, fsm, command{Op: OpSet, Table: "t", Key: []byte("k"), Value: []byte("old")})
	res := applyCmd(t, fsm, command{Op: OpUpsert, Table: "t", Key: []byte("k"), Value: []byte("new"), UpsertID: "overwrite"})
	require.NoError(t, res.Err)
	require.Equal(t, []byte("new"), res.Value)

	v, _ := fsm.get("t", []byte("k"))
	require.Equal(t, []byte("new"), v)
}

func TestFSMUpsertAppend(t *testing.T) {
	fsm := newStateMachine(newRegistry())

	applyCmd(t, fsm, command{Op: OpSet, Table: "t", Key: []byte("k"), Value: []byte("a")})
	res := applyCmd(t, fsm, command{Op: OpUpsert, Table: "t", Key: []byte("k"), Value: []byte("b"), UpsertID: "append"})
	require.NoError(t, res.Err)
	require.Equal(t, []byte("ab"), res.Value)
}

func TestFSMUpsertUnknownID(t *testing.T) {
	fsm := newStateMachine(newRegistry())
	res := applyCmd(t, fsm, command{Op: OpUpsert, Table: "t", Key: []byte("k"), Value: []byte("v"), UpsertID: "nope"})
	require.Error(t, res.Err)
}

func TestFSMCreateDropCloneTable(t *testing.T) {
	fsm := newStateMachine(newRegistry())

	require.NoError(t, applyCmd(t, fsm, command{Op: OpCreateTable, Table: "src"}).Err)
	applyCmd(t, fsm, command{Op: OpSet, Table: "src", Key: []byte("k"), Value: []byte("v")})

	require.NoError(t, applyCmd(t, fsm, command{Op: OpCloneTable, Table: "dst", SourceTable: "src"}).Err)
	v, ok := fsm.get("dst", []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.Contains(t, fsm.allTables(), "src")
	require.Contains(t, fsm.allTables(), "dst")

	require.NoError(t, applyCmd(t, fsm, command{Op: OpDropTable, Table: "src"}).Err)
	require.NotContains(t, fsm.allTables(), "src")
}

func TestFSMCloneMissingSource(t *testing.T) {
	fsm := newStateMachine(newRegistry())
	res := applyCmd(t, fsm, command{Op: OpCloneTable, Table: "dst", SourceTable: "nope"})
	require.Error(t, res.Err)
}

func TestFSMSnapshotRestore(t *testing.T) {
	fsm := newStateMachine(newRegistry())
	applyCmd(t, fsm, command{Op: OpSet, Table: "t", Key: []byte("k"), Value: []byte("v")})

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	pr, pw := newPipe()
	done := make(chan error, 1)
	go func() { done <- snap.Persist(&fakeSnapshotSink{pw}) }()

	other := newStateMachine(newRegistry())
	require.NoError(t, other.Restore(pr))
	require.NoError(t, <-done)

	v, ok := other.get("t", []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}
