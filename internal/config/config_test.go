package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DOCQA_CHUNK_SIZE", "DOCQA_EMBED_DIM", "DOCQA_SEARCH_LIMIT", "DOCQA_HISTORY_LIMIT", "DOCQA_CONTEXT_TURNS", "DOCQA_TEMPORAL_ADDRESS", "DOCQA_MEMORY_BACKEND", "DOCQA_INDEX_BACKEND"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	require.Equal(t, 1000, cfg.ChunkSize)
	require.Equal(t, 768, cfg.EmbedDim)
	require.Equal(t, 5, cfg.SearchLimit)
	require.Equal(t, 10, cfg.HistoryLimit)
	require.Equal(t, 3, cfg.ContextTurns)
	require.Equal(t, "postgres", cfg.MemoryBackend)
	require.Equal(t, "postgres", cfg.IndexBackend)
	require.False(t, cfg.AsyncIngest())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOCQA_CHUNK_SIZE", "250")
	t.Setenv("DOCQA_PORT_TIMEOUT", "2s")
	t.Setenv("DOCQA_PROVIDER_RPS", "1.5")
	t.Setenv("DOCQA_MEMORY_BACKEND", "Badger")
	t.Setenv("DOCQA_TEMPORAL_ADDRESS", "localhost:7233")
	cfg := Load()
	require.Equal(t, 250, cfg.ChunkSize)
	require.Equal(t, 2*time.Second, cfg.PortTimeout)
	require.InDelta(t, 1.5, cfg.ProviderRPS, 1e-9)
	require.Equal(t, "badger", cfg.MemoryBackend)
	require.True(t, cfg.AsyncIngest())
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("DOCQA_CHUNK_SIZE", "lots")
	t.Setenv("DOCQA_PORT_TIMEOUT", "soon")
	cfg := Load()
	require.Equal(t, 1000, cfg.ChunkSize)
	require.Equal(t, 30*time.Second, cfg.PortTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.ChunkSize = 0
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.MemoryBackend = "redis"
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.IndexBackend = "memory"
	cfg.MemoryBackend = "postgres"
	require.Error(t, cfg.Validate())
	cfg.MemoryBackend = "badger"
	require.NoError(t, cfg.Validate())
}
