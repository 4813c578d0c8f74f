package ingest

import (
	"errors"
	"strings"
	"testing"

	"docqa/internal/util"

	"github.com/stretchr/testify/require"
)

func TestSpillChunksRoundTripsByOrdinal(t *testing.T) {
	dir := t.TempDir()
	chunks := []string{"alpha beta", "gamma", "délta épsilon"}
	require.NoError(t, SpillChunks(dir, chunks))

	for i, want := range chunks {
		got, err := ReadSpilledChunk(dir, i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ReadSpilledChunk(dir, len(chunks))
	require.True(t, errors.Is(err, errOrdinalOutOfRange))
	_, err = ReadSpilledChunk(dir, -1)
	require.ErrorIs(t, err, errOrdinalOutOfRange)
}

func TestSpillChunksLargeDocument(t *testing.T) {
	dir := t.TempDir()
	text := strings.Repeat("lorem ipsum dolor sit amet ", 120000)
	chunks := util.SplitWords(text, util.DefaultChunkSize)
	require.Greater(t, len(chunks), 3000)
	require.NoError(t, SpillChunks(dir, chunks))

	last := len(chunks) - 1
	got, err := ReadSpilledChunk(dir, last)
	require.NoError(t, err)
	require.Equal(t, chunks[last], got)
}
