package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKVScanIsOrdered(t *testing.T) {
	m := NewMemoryKV()
	require.NoError(t, m.Set([]byte("b"), []byte("2")))
	require.NoError(t, m.Set([]byte("a"), []byte("1")))
	require.NoError(t, m.Set([]byte("c"), []byte("3")))

	pairs, err := m.Scan(Range{})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, []byte("a"), pairs[0].Key)
	assert.Equal(t, []byte("b"), pairs[1].Key)
	assert.Equal(t, []byte("c"), pairs[2].Key)
}

func TestMemoryKVDeleteRemovesKey(t *testing.T) {
	m := NewMemoryKV()
	require.NoError(t, m.Set([]byte("a"), []byte("1")))
	require.NoError(t, m.Delete([]byte("a")))

	_, ok, err := m.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskKVCompactionEquivalence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compact.log")
	d, err := Open(path, false)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Set([]byte("a"), []byte("1")))
	require.NoError(t, d.Set([]byte("b"), []byte("2")))
	require.NoError(t, d.Set([]byte("a"), []byte("1-updated")))
	require.NoError(t, d.Set([]byte("c"), []byte("3")))
	require.NoError(t, d.Delete([]byte("b")))

	before, err := d.Scan(Range{})
	require.NoError(t, err)

	require.NoError(t, d.Compact())

	after, err := d.Scan(Range{})
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Len(t, after, 2)
}
