// Package agent answers questions by analyzing the query, choosing a search
// strategy, retrieving chunks and synthesizing an answer.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/util"
	"docqa/internal/vector"
)

const DefaultSessionID = "default"

// Processing steps, appended in order as each stage completes.
const (
	StepQueryAnalyzed      = "query_analyzed"
	StepStrategyDetermined = "strategy_determined"
	StepDocumentsRetrieved = "documents_retrieved"
	StepAnswerSynthesized  = "answer_synthesized"
)

// Degraded signals reported alongside an otherwise successful answer.
const (
	DegradedContextUnavailable = "conversation_context_unavailable"
	DegradedTurnNotRecorded    = "turn_not_recorded"
)

type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string, mode providers.TaskMode) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, q vector.Query) ([]models.SearchResult, error)
}

type Memory interface {
	ContextWindow(ctx context.Context, sessionID string, n int) (string, error)
	RecordTurn(ctx context.Context, sessionID, question, answer string, sources []string) (models.ConversationTurn, error)
}

type Pipeline struct {
	llm          LanguageModel
	embedder     Embedder
	search       Searcher
	memory       Memory
	contextTurns int
	sessions     *keyedMutex
	logger       *slog.Logger
}

func NewPipeline(llm LanguageModel, embedder Embedder, search Searcher, memory Memory, contextTurns int) *Pipeline {
	return &Pipeline{
		llm:          llm,
		embedder:     embedder,
		search:       search,
		memory:       memory,
		contextTurns: contextTurns,
		sessions:     newKeyedMutex(),
		logger:       slog.Default().With("component", "pipeline"),
	}
}

// Run answers question within sessionID. Runs for the same session are
// serialized so their turns are recorded in request order.
func (p *Pipeline) Run(ctx context.Context, question, sessionID string) (models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Answer{}, util.ErrEmptyQuestion
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = DefaultSessionID
	}
	unlock, err := p.sessions.Lock(ctx, sessionID)
	if err != nil {
		return models.Answer{}, err
	}
	defer unlock()

	log := p.logger.With("session_id", sessionID)
	st := &models.QueryState{
		OriginalQuery:   question,
		SessionID:       sessionID,
		KeyConcepts:     []string{},
		Sources:         []string{},
		ProcessingSteps: make([]string, 0, 4),
	}
	var degraded []string

	convCtx, err := p.memory.ContextWindow(ctx, sessionID, p.contextTurns)
	if err != nil {
		log.Warn("conversation context unavailable", "err", err)
		degraded = append(degraded, DegradedContextUnavailable)
	}
	st.ConversationContext = convCtx

	if err := p.analyze(ctx, st, log); err != nil {
		return models.Answer{}, err
	}
	p.strategize(st)
	if err := p.retrieve(ctx, st); err != nil {
		return models.Answer{}, err
	}
	if err := p.synthesize(ctx, st); err != nil {
		return models.Answer{}, err
	}

	if _, err := p.memory.RecordTurn(ctx, sessionID, question, *st.FinalAnswer, st.Sources); err != nil {
		log.Error("turn not recorded", "err", err)
		degraded = append(degraded, DegradedTurnNotRecorded)
	}
	log.Info("question answered",
		"strategy", *st.SearchStrategy,
		"retrieved", len(st.RetrievedChunks),
		"sources", len(st.Sources),
	)
	return models.Answer{
		Answer:          *st.FinalAnswer,
		SessionID:       sessionID,
		ProcessingSteps: st.ProcessingSteps,
		AgentAnalysis: models.AgentAnalysis{
			Intent:         *st.Intent,
			KeyConcepts:    st.KeyConcepts,
			SearchStrategy: *st.SearchStrategy,
		},
		Sources:  st.Sources,
		Degraded: degraded,
	}, nil
}

func (p *Pipeline) analyze(ctx context.Context, st *models.QueryState, log *slog.Logger) error {
	raw, err := p.llm.Complete(ctx, BuildAnalysisPrompt(st.OriginalQuery, st.ConversationContext))
	switch {
	case errors.Is(err, providers.ErrEmptyCompletion):
		// Blank output is malformed output: every field takes its default.
		raw = ""
	case err != nil:
		return stageError("analyze", err)
	}
	a := ParseAnalysis(raw)
	if len(a.Defaulted) > 0 {
		log.Warn("analysis output incomplete, using defaults", "fields", a.Defaulted)
	}
	st.Intent = &a.Intent
	st.KeyConcepts = a.KeyConcepts
	st.QueryType = &a.QueryType
	st.ProcessingSteps = append(st.ProcessingSteps, StepQueryAnalyzed)
	return nil
}

func (p *Pipeline) strategize(st *models.QueryState) {
	strategy, params := ChooseStrategy(*st.QueryType, *st.Intent)
	st.SearchStrategy = &strategy
	st.SearchParams = params
	st.ProcessingSteps = append(st.ProcessingSteps, StepStrategyDetermined)
}

func (p *Pipeline) retrieve(ctx context.Context, st *models.QueryState) error {
	vec, err := p.embedder.Embed(ctx, st.OriginalQuery, providers.TaskQuery)
	if err != nil {
		return err
	}
	// semantic_focused differs from the hybrid strategies only in how much
	// weight the vector ranking gets.
	results, err := p.search.Search(ctx, vector.Query{
		Text:           st.OriginalQuery,
		Embedding:      vec,
		Limit:          st.SearchParams.Limit,
		SemanticWeight: st.SearchParams.SemanticWeight,
	})
	if err != nil {
		return err
	}
	st.RetrievedChunks = results
	st.ProcessingSteps = append(st.ProcessingSteps, StepDocumentsRetrieved)
	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, st *models.QueryState) error {
	answer, err := p.llm.Complete(ctx, BuildSynthesisPrompt(st))
	if err != nil {
		return stageError("synthesize", err)
	}
	if strings.TrimSpace(answer) == "" {
		return stageError("synthesize", providers.ErrEmptyCompletion)
	}
	st.FinalAnswer = &answer
	st.Sources = uniqueFilenames(st.RetrievedChunks)
	st.ProcessingSteps = append(st.ProcessingSteps, StepAnswerSynthesized)
	return nil
}

// uniqueFilenames keeps the first occurrence of each filename in rank order.
func uniqueFilenames(results []models.SearchResult) []string {
	out := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := seen[r.Filename]; ok {
			continue
		}
		seen[r.Filename] = struct{}{}
		out = append(out, r.Filename)
	}
	return out
}

func stageError(stage string, err error) error {
	var lmErr *util.LanguageModelError
	if errors.As(err, &lmErr) {
		return &util.LanguageModelError{Stage: stage, Err: lmErr.Err}
	}
	return &util.LanguageModelError{Stage: stage, Err: err}
}
