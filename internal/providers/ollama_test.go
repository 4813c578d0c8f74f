package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOllamaEmbedModel_Default(t *testing.T) {
	t.Setenv("DOCQA_OLLAMA_EMBED_MODEL", "")
	got := resolveOllamaEmbedModel("")
	if got != "nomic-embed-text" {
		t.Fatalf("expected default nomic-embed-text, got %q", got)
	}
}

func TestResolveOllamaEmbedModel_Alias(t *testing.T) {
	t.Setenv("DOCQA_OLLAMA_EMBED_MODEL_LOCAL", "mxbai-embed-large")
	require.Equal(t, "mxbai-embed-large", resolveOllamaEmbedModel("local"))
	require.Equal(t, "all-minilm:l6-v2", resolveOllamaEmbedModel("all-minilm:l6-v2"))
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	a := matchDimension(src, 2)
	if len(a) != 2 || a[0] != 1 || a[1] != 2 {
		t.Fatalf("truncate failed: %#v", a)
	}
	b := matchDimension(src, 5)
	if len(b) != 5 || b[0] != 1 || b[2] != 3 || b[3] != 0 || b[4] != 0 {
		t.Fatalf("pad failed: %#v", b)
	}
}

func TestOllamaEmbedAddsNomicTaskPrefix(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		prompts = append(prompts, body.Prompt)
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.5]}`))
	}))
	defer srv.Close()

	t.Setenv("DOCQA_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("DOCQA_OLLAMA_EMBED_MODEL", "")
	p, err := NewOllamaProvider("")
	require.NoError(t, err)

	_, _, err = p.Embed(context.Background(), EmbedRequest{Inputs: []string{"chunk"}, Mode: TaskDocument})
	require.NoError(t, err)
	_, _, err = p.Embed(context.Background(), EmbedRequest{Inputs: []string{"question"}, Mode: TaskQuery})
	require.NoError(t, err)
	require.Equal(t, []string{"search_document: chunk", "search_query: question"}, prompts)
}
