package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_AddSearchRemove(t *testing.T) {
	idx := NewHNSWIndex(3, DefaultHNSWConfig())

	require.NoError(t, idx.Add("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1, 0}))
	require.NoError(t, idx.Add("c", []float32{0, 0, 1}))
	assert.Equal(t, 3, idx.Size())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	assert.True(t, idx.Remove("a"))
	assert.Equal(t, 2, idx.Size())
	assert.False(t, idx.Remove("a"))
}

func TestHNSWIndex_RemoveReassignsEntryPoint(t *testing.T) {
	idx := NewHNSWIndex(2, DefaultHNSWConfig())

	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1}))

	assert.True(t, idx.Remove("a"))
	assert.True(t, idx.Remove("b"))
	assert.Equal(t, 0, idx.Size())

	require.NoError(t, idx.Add("c", []float32{1, 1}))
	assert.Equal(t, 1, idx.Size())
}

func TestHNSWIndex_GetMetadata(t *testing.T) {
	idx := NewHNSWIndex(2, DefaultHNSWConfig())
	require.NoError(t, idx.Add("a", []float32{1, 0}))

	ts, dim, ok := idx.GetMetadata("a")
	assert.True(t, ok)
	assert.Equal(t, 2, dim)
	assert.Greater(t, ts, int64(0))

	_, _, ok = idx.GetMetadata("missing")
	assert.False(t, ok)
}

func TestHNSWIndex_SidecarRoundTripPreservesCreatedAt(t *testing.T) {
	idx := NewHNSWIndex(2, DefaultHNSWConfig())
	require.NoError(t, idx.Add("a", []float32{1, 0}))

	wantTS, _, ok := idx.GetMetadata("a")
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "vector.hnsw")
	require.NoError(t, idx.Save(path))

	loaded, err := LoadSidecar(path)
	require.NoError(t, err)

	gotTS, gotDim, ok := loaded.GetMetadata("a")
	require.True(t, ok)
	assert.Equal(t, wantTS, gotTS)
	assert.Equal(t, 2, gotDim)
}
