package centrality

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonomal/stract/internal/webpage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "centrality.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHostCentralityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.Equal(t, float64(0), s.HostCentrality("example.com"))

	require.NoError(t, s.SetHostCentrality("example.com", 0.75))
	require.Equal(t, 0.75, s.HostCentrality("example.com"))
}

func TestPageCentralityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	addr := webpage.DocAddress{SegmentOrd: 1, DocID: 42}

	_, ok := s.PageCentrality(addr)
	require.False(t, ok)

	require.NoError(t, s.SetPageCentrality(addr, 0.3))
	score, ok := s.PageCentrality(addr)
	require.True(t, ok)
	require.Equal(t, 0.3, score)
}

func TestClearPageCentrality(t *testing.T) {
	s := openTestStore(t)
	addr := webpage.DocAddress{SegmentOrd: 0, DocID: 1}

	require.NoError(t, s.SetPageCentrality(addr, 0.9))
	require.NoError(t, s.ClearPageCentrality())

	_, ok := s.PageCentrality(addr)
	require.False(t, ok)
}
