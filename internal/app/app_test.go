package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docqa/internal/config"
	"docqa/internal/storage"

	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("DOCQA_TEMPORAL_ADDRESS", "")
	cfg := config.Load()
	cfg.IndexBackend = "memory"
	cfg.MemoryBackend = "badger"
	cfg.BadgerDir = t.TempDir()
	cfg.LLMProviders = "mock"
	cfg.EmbedProviders = "mock"
	cfg.EmbedDim = 32
	return cfg
}

func TestNewOfflineAppAnswersQuestions(t *testing.T) {
	a, err := New(context.Background(), offlineConfig(t), WithTemporal())
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, a.Temporal)

	h := a.API().Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload?filename=facts.txt", strings.NewReader("The sky is blue. Water is wet.")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ans, err := a.Pipeline.Run(context.Background(), "What color is the sky?", "s")
	require.NoError(t, err)
	require.Equal(t, []string{"facts.txt"}, ans.Sources)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.MemoryBackend = "postgres"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), offlineConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestNewWorkerLeavesBadgerDirectoryFree(t *testing.T) {
	cfg := offlineConfig(t)
	held, err := storage.OpenBadgerTurnStore(cfg.BadgerDir)
	require.NoError(t, err)
	defer held.Close()

	w, err := NewWorker(context.Background(), cfg)
	require.NoError(t, err)
	defer w.Close()
	require.NotNil(t, w.Indexer)
	require.Nil(t, w.Memory)
	require.Nil(t, w.Pipeline)

	_, err = w.Indexer.Ingest(context.Background(), "facts.txt", []byte("The sky is blue."))
	require.NoError(t, err)
}

func TestQueryAppNeedsExclusiveBadgerDirectory(t *testing.T) {
	cfg := offlineConfig(t)
	held, err := storage.OpenBadgerTurnStore(cfg.BadgerDir)
	require.NoError(t, err)
	defer held.Close()

	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}
