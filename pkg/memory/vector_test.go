package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/fault"
)

func TestVectorIndexSearchOrdering(t *testing.T) {
	index := NewVectorIndex(3)
	require.NoError(t, index.Add("x", []float32{1, 0, 0}))
	require.NoError(t, index.Add("y", []float32{0.9, 0.1, 0}))
	require.NoError(t, index.Add("z", []float32{0, 0, 1}))

	ids, distances, err := index.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z"}, ids)

	for i := 1; i < len(distances); i++ {
		assert.LessOrEqual(t, distances[i-1], distances[i], "distances must be nondecreasing")
	}
	assert.InDelta(t, 0, distances[0], 1e-9)
}

func TestVectorIndexTopKClamp(t *testing.T) {
	index := NewVectorIndex(2)
	require.NoError(t, index.Add("only", []float32{1, 1}))

	ids, _, err := index.Search([]float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, _, err = index.Search([]float32{1, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestVectorIndexDimensionMismatch(t *testing.T) {
	index := NewVectorIndex(4)

	err := index.Add("bad", []float32{1, 2})
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))

	_, _, err = index.Search([]float32{1}, 1)
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))
}

func TestVectorIndexSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors", "conversations", "index.bin")

	index := NewVectorIndex(3)
	require.NoError(t, index.Add("a", []float32{1, 2, 3}))
	require.NoError(t, index.Add("b", []float32{-1, 0.5, 0}))
	require.NoError(t, index.Save(path))

	loaded := NewVectorIndex(3)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Len())
	assert.True(t, loaded.Has("a"))
	assert.True(t, loaded.Has("b"))

	ids, _, err := loaded.Search([]float32{1, 2, 3}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	// Wrong dimension refuses to load.
	narrow := NewVectorIndex(2)
	err = narrow.Load(path)
	assert.Equal(t, fault.KindFatal, fault.KindOf(err))

	// Missing file is not an error.
	fresh := NewVectorIndex(3)
	require.NoError(t, fresh.Load(filepath.Join(t.TempDir(), "absent.bin")))
	assert.Zero(t, fresh.Len())
}
