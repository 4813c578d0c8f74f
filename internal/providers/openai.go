package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIChatModel = "gpt-4o-mini"
	groqBaseURL            = "https://api.groq.com/openai/v1"
	defaultGroqModel       = "llama-3.1-8b-instant"
	assistantSystemPrompt  = "You are a document question-answering assistant. Stay grounded in the provided documents."
)

// OpenAIProvider talks to OpenAI, or to any OpenAI-compatible endpoint such as Groq.
type OpenAIProvider struct {
	name       string
	keyName    string
	apiKey     string
	chatModel  string
	embedModel openai.EmbeddingModel
	client     *openai.Client
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	apiKey := resolveKey("OPENAI", keyName)
	chatModel := strings.TrimSpace(os.Getenv("DOCQA_OPENAI_MODEL"))
	if chatModel == "" {
		chatModel = defaultOpenAIChatModel
	}
	return &OpenAIProvider{
		name:       "openai",
		keyName:    keyName,
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: openai.SmallEmbedding3,
		client:     openai.NewClient(apiKey),
	}
}

// NewGroqProvider serves chat completions through Groq's OpenAI-compatible API.
// Groq has no embeddings endpoint.
func NewGroqProvider(keyName string) *OpenAIProvider {
	apiKey := resolveKey("GROQ", keyName)
	model := strings.TrimSpace(os.Getenv("DOCQA_GROQ_MODEL"))
	if model == "" {
		model = defaultGroqModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &OpenAIProvider{
		name:      "groq",
		keyName:   keyName,
		apiKey:    apiKey,
		chatModel: model,
		client:    openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: o.name, Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.info(string(o.embedModel))
	if o.embedModel == "" {
		return nil, info, fmt.Errorf("%s does not support embeddings", o.name)
	}
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      req.Inputs,
		Model:      o.embedModel,
		Dimensions: req.Dimension,
	})
	if err != nil {
		return nil, info, fmt.Errorf("%s embedding request failed: %w", o.name, err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("%s returned %d embeddings for %d inputs", o.name, len(resp.Data), len(req.Inputs))
	}
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := o.info(o.chatModel)
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistantSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate request failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices", o.name)
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, info, nil
}

// resolveKey looks up DOCQA_<VENDOR>_KEY_<ALIAS> first, then <VENDOR>_API_KEY.
func resolveKey(vendor, alias string) string {
	if alias != "" {
		if v := os.Getenv("DOCQA_" + vendor + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(vendor + "_API_KEY")
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
