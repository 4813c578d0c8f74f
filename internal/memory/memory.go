// Package memory records question/answer turns per session and renders them
// back as prompt context.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docqa/internal/models"
)

const (
	DefaultHistoryLimit = 10
	DefaultContextTurns = 3
	answerPreviewRunes  = 200
)

// TurnStore persists turns. Recent returns the newest turns first.
type TurnStore interface {
	Append(ctx context.Context, t models.ConversationTurn) error
	Recent(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type Memory struct {
	store  TurnStore
	logger *slog.Logger

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func New(store TurnStore) *Memory {
	return &Memory{
		store:  store,
		logger: slog.Default().With("component", "memory"),
		now:    time.Now,
	}
}

// nextTimestamp returns a UTC timestamp strictly after every earlier one
// handed out by m. Microsecond granularity matches Postgres timestamptz.
func (m *Memory) nextTimestamp() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now().UTC().Truncate(time.Microsecond)
	if !ts.After(m.last) {
		ts = m.last.Add(time.Microsecond)
	}
	m.last = ts
	return ts
}

func (m *Memory) RecordTurn(ctx context.Context, sessionID, question, answer string, sources []string) (models.ConversationTurn, error) {
	ts := m.nextTimestamp()
	if sources == nil {
		sources = []string{}
	}
	t := models.ConversationTurn{
		TurnID:    fmt.Sprintf("%s_%d", sessionID, ts.UnixNano()),
		SessionID: sessionID,
		Timestamp: ts,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
	}
	if err := m.store.Append(ctx, t); err != nil {
		return models.ConversationTurn{}, fmt.Errorf("record turn: %w", err)
	}
	return t, nil
}

// History returns up to limit most recent turns in chronological order.
func (m *Memory) History(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	turns, err := m.store.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(turns) > limit {
		turns = turns[:limit]
	}
	slices.Reverse(turns)
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	return turns, nil
}

// ContextWindow renders the n most recent turns for prompting. Answers are
// cut to their first 200 runes and always followed by "...".
func (m *Memory) ContextWindow(ctx context.Context, sessionID string, n int) (string, error) {
	if n <= 0 {
		n = DefaultContextTurns
	}
	turns, err := m.History(ctx, sessionID, n)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}
	lines := make([]string, 0, 2*len(turns))
	for _, t := range turns {
		lines = append(lines,
			"Previous Q: "+t.Question,
			"Previous A: "+firstRunes(t.Answer, answerPreviewRunes)+"...",
		)
	}
	return strings.Join(lines, "\n"), nil
}

func (m *Memory) ClearSession(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.Info("session cleared", "session_id", sessionID)
	return nil
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
