package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/errs"
	"kvsql/internal/kv"
)

func TestWriteConflictOnOverlappingWriters(t *testing.T) {
	m := New(kv.NewMemoryKV())

	t1, err := m.Begin()
	require.NoError(t, err)
	t2, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, t1.Set([]byte("k"), []byte("v1")))
	require.NoError(t, t1.Commit())

	err = t2.Set([]byte("k"), []byte("v2"))
	assert.True(t, errs.Is(err, errs.KindWriteConflict), "expected WriteConflict, got %v", err)
}

func TestNonOverlappingWritersDoNotConflict(t *testing.T) {
	m := New(kv.NewMemoryKV())

	t1, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, t1.Set([]byte("k"), []byte("v1")))
	require.NoError(t, t1.Commit())

	t2, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, t2.Set([]byte("k"), []byte("v2")))
	require.NoError(t, t2.Commit())

	t3, err := m.Begin()
	require.NoError(t, err)
	v, ok, err := t3.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(v))
}

func TestSnapshotIsolationHidesLaterPrefixInserts(t *testing.T) {
	m := New(kv.NewMemoryKV())

	seed, err := m.Begin()
	require.NoError(t, err)
	for _, k := range []string{"k1", "k2", "k3"} {
		require.NoError(t, seed.Set([]byte(k), []byte("v")))
	}
	require.NoError(t, seed.Commit())

	t1, err := m.Begin()
	require.NoError(t, err)
	t2, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, t2.Set([]byte("k4"), []byte("v")))
	require.NoError(t, t2.Commit())

	pairs, err := t1.PrefixScan([]byte("k"))
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	for _, p := range pairs {
		assert.NotEqual(t, "k4", string(p.Key))
	}
}

func TestDoubleCommitIsAnError(t *testing.T) {
	m := New(kv.NewMemoryKV())
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
}

func TestDoubleRollbackIsAnError(t *testing.T) {
	m := New(kv.NewMemoryKV())
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Error(t, tx.Rollback())
}
