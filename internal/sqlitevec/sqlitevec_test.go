package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-rag/internal/index"
	"claim-rag/internal/models"
)

func TestStore_SaveSearchReplace(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	defer s.Close()

	exists, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	chunks := []models.Chunk{
		{Source: "a.pdf", ChunkID: 0, Text: "ambulance", PageNumber: 1},
		{Source: "a.pdf", ChunkID: 1, Text: "icu", PageNumber: 2},
		{Source: "b.pdf", ChunkID: 0, Text: "ayush", PageNumber: 5},
	}
	vectors := [][]float32{{0, 0}, {1, 1}, {5, 5}}
	m := &index.Manifest{Backend: "fake", Model: "m", Dimension: 2, ChunkCount: 3, Store: "sqlitevec"}
	require.NoError(t, s.Save(ctx, chunks, vectors, m))

	exists, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	hits, err := s.Search(ctx, []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "icu", hits[0].Chunk.Text)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Equal(t, "ambulance", hits[1].Chunk.Text)
	assert.InDelta(t, 1.41421, hits[1].Distance, 1e-4)

	// Saving again replaces the previous index, even with a new dimension.
	m2 := &index.Manifest{Backend: "fake", Model: "m", Dimension: 3, ChunkCount: 1, Store: "sqlitevec"}
	require.NoError(t, s.Save(ctx, chunks[2:], [][]float32{{1, 2, 3}}, m2))
	hits, err = s.Search(ctx, []float32{1, 2, 3}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.pdf", hits[0].Chunk.Source)
	assert.Equal(t, 5, hits[0].Chunk.PageNumber)

	_, err = s.Search(ctx, []float32{1, 2}, 5)
	assert.ErrorIs(t, err, models.ErrBackendMismatch)
}

func TestStore_SearchSingleChunk(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	defer s.Close()

	m := &index.Manifest{Backend: "fake", Model: "m", Dimension: 2, ChunkCount: 1, Store: "sqlitevec"}
	require.NoError(t, s.Save(ctx, []models.Chunk{{Source: "a.pdf", Text: "room rent", PageNumber: 1}}, [][]float32{{3, 4}}, m))

	for _, k := range []int{1, 0, 50} {
		hits, err := s.Search(ctx, []float32{0, 0}, k)
		require.NoError(t, err, "k=%d", k)
		require.Len(t, hits, 1, "k=%d", k)
		assert.Equal(t, "room rent", hits[0].Chunk.Text)
		assert.InDelta(t, 5, hits[0].Distance, 1e-5)
	}
}
