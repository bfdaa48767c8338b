package postings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentsAndRemoveSegment(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(DefaultWriterConfig())
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDocument("Go", "https://example.com/go", "go is great", 1.0)))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	summaries := idx.Segments()
	require.Len(t, summaries, 1)
	require.NotZero(t, summaries[0].CreatedAt)

	require.NoError(t, idx.RemoveSegment(summaries[0].ID))
	require.Empty(t, idx.Segments())

	err = idx.RemoveSegment(summaries[0].ID)
	require.Error(t, err)
}

func TestReloadSegmentPicksUpExternalSegment(t *testing.T) {
	root := t.TempDir()
	srcPath := filepath.Join(root, "src")
	dstPath := filepath.Join(root, "dst")

	src, err := Open(srcPath)
	require.NoError(t, err)

	w, err := src.Writer(DefaultWriterConfig())
	require.NoError(t, err)
	require.NoError(t, w.Insert(testDocument("Go", "https://example.com/go", "go is great", 1.0)))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	segID := src.Segments()[0].ID
	require.NoError(t, src.Close())

	require.NoError(t, os.MkdirAll(dstPath, 0o755))
	require.NoError(t, os.Rename(filepath.Join(srcPath, segID), filepath.Join(dstPath, segID)))

	dst, err := Open(dstPath)
	require.NoError(t, err)
	defer func() { _ = dst.Close() }()

	require.NoError(t, dst.ReloadSegment(segID))
	require.Len(t, dst.Segments(), 1)

	require.NoError(t, dst.ReloadSegment(segID))
	require.Len(t, dst.Segments(), 1)
}
