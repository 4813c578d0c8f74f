package vector

import (
	"context"
	"testing"

	"docqa/internal/models"

	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.InsertChunk(ctx, models.Chunk{ChunkID: "d1_0", DocumentID: "d1", Filename: "sky.txt", Content: "The sky is blue.", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.InsertChunk(ctx, models.Chunk{ChunkID: "d2_0", DocumentID: "d2", Filename: "water.txt", Content: "Water is wet.", Embedding: []float32{0, 1}}))
	require.NoError(t, idx.InsertChunk(ctx, models.Chunk{ChunkID: "d3_0", DocumentID: "d3", Filename: "grass.txt", Content: "Grass is green.", Embedding: []float32{0.7, 0.7}}))
	return idx
}

func TestMemoryIndexLexicalMatchesAnyTerm(t *testing.T) {
	got, err := seedIndex(t).LexicalSearch(context.Background(), "what colour is the sky or water", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	names := []string{got[0].Filename, got[1].Filename}
	require.ElementsMatch(t, []string{"sky.txt", "water.txt"}, names)
}

func TestMemoryIndexCombinedFusesRanks(t *testing.T) {
	idx := seedIndex(t)
	got, err := idx.CombinedSearch(context.Background(), Query{Text: "sky", Embedding: []float32{1, 0}, Limit: 2, SemanticWeight: 0.5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "sky.txt", got[0].Filename)
	require.Greater(t, got[0].RelevanceScore, got[1].RelevanceScore)
}

func TestMemoryIndexCombinedNeedsEmbedding(t *testing.T) {
	_, err := seedIndex(t).CombinedSearch(context.Background(), Query{Text: "sky", Limit: 2})
	require.ErrorIs(t, err, errEmptyEmbedding)
}
