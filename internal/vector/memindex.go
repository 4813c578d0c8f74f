package vector

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"docqa/internal/models"
)

// MemoryIndex is a process-local search index with the same ranking rules as
// the Postgres backend: any-term lexical matching, cosine nearest neighbours
// and weighted reciprocal rank fusion. It serves offline runs and tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]models.Chunk
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: map[string]models.Chunk{}}
}

func (m *MemoryIndex) Ensure(context.Context) error { return nil }

func (m *MemoryIndex) InsertChunk(_ context.Context, c models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c.ChunkID] = c
	return nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

type scored struct {
	chunk models.Chunk
	score float64
}

func (m *MemoryIndex) CombinedSearch(ctx context.Context, q Query) ([]models.SearchResult, error) {
	if len(q.Embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lexical := m.lexicalRanked(q.Text, q.Limit)

	m.mu.RLock()
	semantic := make([]scored, 0, len(m.chunks))
	for _, c := range m.chunks {
		semantic = append(semantic, scored{chunk: c, score: cosine(q.Embedding, c.Embedding)})
	}
	m.mu.RUnlock()
	sortScored(semantic)
	if len(semantic) > q.Limit {
		semantic = semantic[:q.Limit]
	}

	fused := map[string]*scored{}
	for i, s := range lexical {
		fused[s.chunk.ChunkID] = &scored{chunk: s.chunk, score: (1 - q.SemanticWeight) / float64(rrfK+i+1)}
	}
	for i, s := range semantic {
		part := q.SemanticWeight / float64(rrfK+i+1)
		if f, ok := fused[s.chunk.ChunkID]; ok {
			f.score += part
			continue
		}
		fused[s.chunk.ChunkID] = &scored{chunk: s.chunk, score: part}
	}
	all := make([]scored, 0, len(fused))
	for _, f := range fused {
		all = append(all, *f)
	}
	sortScored(all)
	return toResults(all, q.Limit), nil
}

func (m *MemoryIndex) LexicalSearch(ctx context.Context, text string, limit int) ([]models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toResults(m.lexicalRanked(text, limit), limit), nil
}

func (m *MemoryIndex) lexicalRanked(text string, limit int) []scored {
	terms := tokenize(text)
	if len(terms) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]scored, 0)
	for _, c := range m.chunks {
		words := tokenize(c.Content)
		hits := 0
		for t := range terms {
			hits += words[t]
		}
		if hits > 0 {
			out = append(out, scored{chunk: c, score: float64(hits) / float64(1+len(words))})
		}
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tokenize(s string) map[string]int {
	out := map[string]int{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) > 2 {
			out[w]++
		}
	}
	return out
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].chunk.ChunkID < s[j].chunk.ChunkID
	})
}

func toResults(s []scored, limit int) []models.SearchResult {
	if len(s) > limit {
		s = s[:limit]
	}
	out := make([]models.SearchResult, 0, len(s))
	for _, x := range s {
		out = append(out, models.SearchResult{
			Content:        x.chunk.Content,
			Filename:       x.chunk.Filename,
			DocumentID:     x.chunk.DocumentID,
			ChunkIndex:     x.chunk.Ordinal,
			RelevanceScore: x.score,
		})
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
