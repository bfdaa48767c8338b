package webgraph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Open(filepath.Join(t.TempDir(), "graph.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestNodeIDAssignsStableIncrementingIDs(t *testing.T) {
	g := openTestGraph(t)

	a, err := g.NodeID("a.example.com")
	require.NoError(t, err)
	b, err := g.NodeID("b.example.com")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	again, err := g.NodeID("a.example.com")
	require.NoError(t, err)
	require.Equal(t, a, again)

	host, ok := g.Host(a)
	require.True(t, ok)
	require.Equal(t, "a.example.com", host)
}

func TestHostUnknownID(t *testing.T) {
	g := openTestGraph(t)
	_, ok := g.Host(999)
	require.False(t, ok)
}

func TestAddEdgeAndTraverse(t *testing.T) {
	g := openTestGraph(t)

	a, err := g.NodeID("a.example.com")
	require.NoError(t, err)
	b, err := g.NodeID("b.example.com")
	require.NoError(t, err)
	c, err := g.NodeID("c.example.com")
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(a, c))
	require.NoError(t, g.AddEdge(b, c))

	out, err := g.OutEdges(a)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{b, c}, out)

	in, err := g.InEdges(c)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{a, b}, in)
}

func TestAddEdgeIdempotent(t *testing.T) {
	g := openTestGraph(t)

	a, err := g.NodeID("a.example.com")
	require.NoError(t, err)
	b, err := g.NodeID("b.example.com")
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(a, b))

	out, err := g.OutEdges(a)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
