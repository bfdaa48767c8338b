package dht

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	r := newRegistry()

	overwrite, err := r.lookup("overwrite")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), overwrite([]byte("a"), []byte("b")))

	keepExisting, err := r.lookup("keep-existing")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), keepExisting([]byte("a"), []byte("b")))
	require.Equal(t, []byte("b"), keepExisting(nil, []byte("b")))

	appendFn, err := r.lookup("append")
	require.NoError(t, err)
	require.Equal(t, []byte("ab"), appendFn([]byte("a"), []byte("b")))
	require.Equal(t, []byte("b"), appendFn(nil, []byte("b")))
}

func TestRegistryUnknown(t *testing.T) {
	r := newRegistry()
	_, err := r.lookup("nope")
	require.Error(t, err)
}

func TestRegistryRegisterCustom(t *testing.T) {
	r := newRegistry()
	r.Register("max", func(existing, next []byte) []byte {
		if len(existing) > len(next) {
			return existing
		}
		return next
	})

	fn, err := r.lookup("max")
	require.NoError(t, err)
	require.Equal(t, []byte("longer"), fn([]byte("longer"), []byte("x")))
}
