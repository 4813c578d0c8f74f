package vector

import (
	"context"
	"log/slog"
	"time"

	"docqa/internal/models"
	"docqa/internal/util"
)

const DefaultLimit = 5

type Query struct {
	Text           string
	Embedding      []float32
	Limit          int
	SemanticWeight float64
}

// Backend is the search index port used by the Combiner.
type Backend interface {
	CombinedSearch(ctx context.Context, q Query) ([]models.SearchResult, error)
	LexicalSearch(ctx context.Context, text string, limit int) ([]models.SearchResult, error)
}

// Combiner runs the combined lexical+vector search and falls back to a plain
// lexical search with the same limit when the combined request fails.
type Combiner struct {
	backend      Backend
	timeout      time.Duration
	defaultLimit int
	logger       *slog.Logger
}

type CombinerOption func(*Combiner)

// WithDefaultLimit sets the limit used when a query does not carry one.
func WithDefaultLimit(n int) CombinerOption {
	return func(c *Combiner) {
		if n > 0 {
			c.defaultLimit = n
		}
	}
}

func WithLogger(logger *slog.Logger) CombinerOption {
	return func(c *Combiner) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCombiner(backend Backend, timeout time.Duration, opts ...CombinerOption) *Combiner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Combiner{
		backend:      backend,
		timeout:      timeout,
		defaultLimit: DefaultLimit,
		logger:       slog.Default().With("component", "hybrid-search"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns at most q.Limit results. An empty slice means nothing
// matched; *util.SearchUnavailableError means neither path worked.
func (c *Combiner) Search(ctx context.Context, q Query) ([]models.SearchResult, error) {
	if q.Limit <= 0 {
		q.Limit = c.defaultLimit
	}
	results, combinedErr := c.combined(ctx, q)
	if combinedErr == nil {
		return clip(results, q.Limit), nil
	}
	c.logger.Warn("combined search failed, falling back to lexical", "limit", q.Limit, "err", combinedErr)

	results, fallbackErr := c.lexical(ctx, q.Text, q.Limit)
	if fallbackErr != nil {
		c.logger.Error("lexical fallback failed", "limit", q.Limit, "err", fallbackErr)
		return nil, &util.SearchUnavailableError{Combined: combinedErr, Fallback: fallbackErr}
	}
	return clip(results, q.Limit), nil
}

func (c *Combiner) combined(ctx context.Context, q Query) ([]models.SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.backend.CombinedSearch(callCtx, q)
}

func (c *Combiner) lexical(ctx context.Context, text string, limit int) ([]models.SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.backend.LexicalSearch(callCtx, text, limit)
}

func clip(results []models.SearchResult, limit int) []models.SearchResult {
	if results == nil {
		return []models.SearchResult{}
	}
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
