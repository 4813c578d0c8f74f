package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls the Generative Language REST API for both chat and
// retrieval embeddings.
type GeminiProvider struct {
	keyName    string
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	client     *http.Client
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	model := strings.TrimSpace(os.Getenv("DOCQA_GEMINI_MODEL"))
	if model == "" {
		model = "models/gemini-2.5-flash"
	}
	embedModel := strings.TrimSpace(os.Getenv("DOCQA_GEMINI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "models/embedding-001"
	}
	baseURL := strings.TrimSpace(os.Getenv("DOCQA_GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiProvider{
		keyName:    keyName,
		apiKey:     resolveKey("GOOGLE", keyName),
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      withModelsPrefix(model),
		embedModel: withModelsPrefix(embedModel),
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func withModelsPrefix(m string) string {
	if strings.HasPrefix(m, "models/") {
		return m
	}
	return "models/" + m
}

// geminiTaskType maps a task mode onto the retrieval task types the embedding
// model was trained with.
func geminiTaskType(mode TaskMode) string {
	if mode == TaskQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.embedModel, Key: g.keyName}
	if g.apiKey == "" {
		return nil, info, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		payload := map[string]any{
			"model":    g.embedModel,
			"content":  map[string]any{"parts": []map[string]string{{"text": text}}},
			"taskType": geminiTaskType(req.Mode),
		}
		var parsed struct {
			Embedding struct {
				Values []float32 `json:"values"`
			} `json:"embedding"`
		}
		if err := g.post(ctx, g.embedModel+":embedContent", payload, &parsed); err != nil {
			return nil, info, fmt.Errorf("gemini embedding: %w", err)
		}
		if len(parsed.Embedding.Values) == 0 {
			return nil, info, fmt.Errorf("gemini returned empty embedding")
		}
		out = append(out, parsed.Embedding.Values)
	}
	return out, info, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": req.Prompt}}},
		},
	}
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := g.post(ctx, g.model+":generateContent", payload, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no candidates")
	}
	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func (g *GeminiProvider) post(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("error %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
