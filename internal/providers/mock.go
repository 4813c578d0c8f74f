package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider is a deterministic offline provider for local runs and tests.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if strings.Contains(req.Prompt, "Respond in format:") {
		return GenerateResponse{Text: mockAnalysis(req.Prompt)}, info, nil
	}
	var b strings.Builder
	b.WriteString("Deterministic answer based on retrieved documents.")
	for _, line := range strings.Split(req.Prompt, "\n") {
		if name, ok := strings.CutPrefix(line, "Source: "); ok {
			b.WriteString(" [")
			b.WriteString(strings.TrimSpace(name))
			b.WriteString("]")
		}
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

// mockAnalysis answers the query analysis prompt with well-formed labeled lines.
func mockAnalysis(prompt string) string {
	query := ""
	for _, line := range strings.Split(prompt, "\n") {
		if q, ok := strings.CutPrefix(line, "Query: "); ok {
			query = q
			break
		}
	}
	intent := "factual"
	low := strings.ToLower(query)
	switch {
	case strings.HasPrefix(low, "what is"), strings.HasPrefix(low, "define"):
		intent = "definition"
	case strings.Contains(low, " vs "), strings.Contains(low, "compare"), strings.Contains(low, "difference"):
		intent = "comparison"
	case strings.HasPrefix(low, "why"), strings.HasPrefix(low, "how"):
		intent = "explanation"
	}
	queryType := "simple"
	if strings.Count(query, "?") > 1 {
		queryType = "multi-part"
	}
	concepts := make([]string, 0, 4)
	for _, w := range strings.Fields(query) {
		w = strings.Trim(w, ",.;:!?()\"'")
		if len(w) > 3 && len(concepts) < 4 {
			concepts = append(concepts, strings.ToLower(w))
		}
	}
	return "Intent: " + intent + "\nConcepts: " + strings.Join(concepts, ", ") + "\nType: " + queryType
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
