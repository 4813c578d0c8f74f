package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"docqa/internal/config"
	"docqa/internal/util"

	"golang.org/x/time/rate"
)

// ErrEmptyCompletion is reported when the last provider tried answered with
// blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// Gateway is the port boundary for the embedding generator and the language
// model. Every call gets its own timeout; rate-limited and transient failures
// are retried with backoff before the next provider in the list is tried.
type Gateway struct {
	manager    *Manager
	dim        int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewGateway(m *Manager, cfg config.Config) *Gateway {
	g := &Gateway{
		manager:    m,
		dim:        cfg.EmbedDim,
		timeout:    cfg.PortTimeout,
		maxRetries: cfg.ProviderMaxRetries,
		retryDelay: cfg.ProviderRetryDelay,
		logger:     slog.Default().With("component", "provider-gateway"),
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	if g.retryDelay <= 0 {
		g.retryDelay = 500 * time.Millisecond
	}
	if cfg.ProviderRPS > 0 {
		burst := int(cfg.ProviderRPS)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), burst)
	}
	return g
}

// Embed returns a vector of the configured dimension for text.
// Failures are reported as *util.EmbeddingError.
func (g *Gateway) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	if g.manager.EmbedCount() == 0 {
		return nil, &util.EmbeddingError{Err: errors.New("no embedding providers configured")}
	}
	var lastErr error
	for _, idx := range g.manager.PreferredEmbedOrder() {
		p, ref := g.manager.EmbedProviderByIndex(idx)
		var vec []float32
		err := g.withRetry(ctx, ref, func(callCtx context.Context) error {
			vectors, _, err := p.Embed(callCtx, EmbedRequest{
				Operation: "embed_" + string(mode),
				Inputs:    []string{text},
				Mode:      mode,
				Dimension: g.dim,
			})
			if err != nil {
				return err
			}
			if len(vectors) == 0 || len(vectors[0]) == 0 {
				return fmt.Errorf("%s returned no embedding", ref.Raw)
			}
			vec = vectors[0]
			return nil
		})
		if err == nil {
			if len(vec) != g.dim {
				g.logger.Warn("embedding dimension mismatch", "provider", ref.Raw, "got", len(vec), "want", g.dim)
				vec = matchDimension(vec, g.dim)
			}
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.logger.Warn("embedding provider failed, trying next", "provider", ref.Raw, "error_type", ClassifyError(err), "err", err)
	}
	return nil, &util.EmbeddingError{Err: lastErr}
}

// Complete sends prompt to the language model and returns the raw completion.
// Failures are reported as *util.LanguageModelError; a blank completion from
// the last provider tried wraps ErrEmptyCompletion.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	if g.manager.LLMCount() == 0 {
		return "", &util.LanguageModelError{Err: errors.New("no llm providers configured")}
	}
	var lastErr error
	for _, idx := range g.manager.PreferredLLMOrder() {
		p, ref := g.manager.LLMProviderByIndex(idx)
		var text string
		err := g.withRetry(ctx, ref, func(callCtx context.Context) error {
			resp, _, err := p.Generate(callCtx, GenerateRequest{Operation: "complete", Prompt: prompt})
			if err != nil {
				return err
			}
			if strings.TrimSpace(resp.Text) == "" {
				return fmt.Errorf("%s returned an %w", ref.Raw, ErrEmptyCompletion)
			}
			text = resp.Text
			return nil
		})
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.logger.Warn("llm provider failed, trying next", "provider", ref.Raw, "error_type", ClassifyError(err), "err", err)
	}
	return "", &util.LanguageModelError{Err: lastErr}
}

func (g *Gateway) withRetry(ctx context.Context, ref ProviderRef, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.maxRetries+1; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("wait for provider rate limit: %w", err)
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		lastErr = op(callCtx)
		cancel()
		if lastErr == nil {
			if attempt > 1 {
				g.logger.Debug("provider call succeeded after retry", "provider", ref.Raw, "attempt", attempt)
			}
			return nil
		}
		if !Retryable(ClassifyError(lastErr)) || attempt > g.maxRetries {
			break
		}
		delay := backoff(g.retryDelay, attempt)
		g.logger.Debug("provider call failed, will retry", "provider", ref.Raw, "attempt", attempt, "delay", delay, "err", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoff doubles base per attempt with +/-25% jitter, capped at 30s.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 20 {
		attempt = 20
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	if d < 4 {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2)) - d/4
	return d + jitter
}
