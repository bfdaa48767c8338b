package livendex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/postings"
	"github.com/nonomal/stract/internal/webpage"
)

type fakeMembership struct {
	calls []string
}

func (f *fakeMembership) Set(table string, key, value []byte) (uint64, error) {
	f.calls = append(f.calls, string(value))
	return 1, nil
}

func testDoc(title, url, body string) *webpage.Document {
	return &webpage.Document{Title: title, AllBody: body, CleanBody: body, StemmedCleanBody: body, Url: url}
}

func newTestManager(t *testing.T, cfg config.LiveIndexConfig) (*Manager, *postings.Index) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := postings.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	m := New(idx, path, "node-1", cfg, nil, nil)
	t.Cleanup(func() { _ = m.Close() })
	return m, idx
}

func TestSetStateAdvertisesMembership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := postings.Open(path)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	fm := &fakeMembership{}
	m := New(idx, path, "node-1", config.DefaultLiveIndexConfig(), fm, nil)
	defer func() { _ = m.Close() }()

	require.Equal(t, InSetup, m.State())
	m.setState(Ready)
	require.Equal(t, Ready, m.State())
	require.Equal(t, []string{"ready"}, fm.calls)
}

func TestAutoCommitFlushesPendingWriter(t *testing.T) {
	cfg := config.DefaultLiveIndexConfig()
	m, idx := newTestManager(t, cfg)

	w, err := m.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDoc("Go", "https://example.com/go", "go is great")))

	require.NoError(t, m.autoCommit())
	require.Len(t, idx.Segments(), 1)
}

func TestPruneByTTLRemovesOldSegments(t *testing.T) {
	cfg := config.DefaultLiveIndexConfig()
	cfg.SegmentTTL = time.Nanosecond
	m, idx := newTestManager(t, cfg)

	w, err := m.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDoc("Go", "https://example.com/go", "go is great")))
	require.NoError(t, w.Commit())
	m.writer = nil

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.pruneByTTL())
	require.Empty(t, idx.Segments())
}

func TestPruneByTTLDisabledWhenZero(t *testing.T) {
	cfg := config.DefaultLiveIndexConfig()
	cfg.SegmentTTL = 0
	m, idx := newTestManager(t, cfg)

	w, err := m.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDoc("Go", "https://example.com/go", "go is great")))
	require.NoError(t, w.Commit())
	m.writer = nil

	require.NoError(t, m.pruneByTTL())
	require.Len(t, idx.Segments(), 1)
}

func TestHandleFSEventReloadsNewSegmentDirectory(t *testing.T) {
	root := t.TempDir()
	srcPath := filepath.Join(root, "src")
	dstPath := filepath.Join(root, "dst")

	src, err := postings.Open(srcPath)
	require.NoError(t, err)
	w, err := src.Writer(postings.DefaultWriterConfig())
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDoc("Go", "https://example.com/go", "go is great")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())
	segID := src.Segments()[0].ID
	require.NoError(t, src.Close())

	require.NoError(t, os.MkdirAll(dstPath, 0o755))
	require.NoError(t, os.Rename(filepath.Join(srcPath, segID), filepath.Join(dstPath, segID)))

	dst, err := postings.Open(dstPath)
	require.NoError(t, err)
	defer func() { _ = dst.Close() }()

	m := New(dst, dstPath, "node-1", config.DefaultLiveIndexConfig(), nil, nil)
	defer func() { _ = m.Close() }()

	m.handleFSEvent(fsnotify.Event{Name: filepath.Join(dstPath, segID), Op: fsnotify.Create})
	require.Len(t, dst.Segments(), 1)
}
