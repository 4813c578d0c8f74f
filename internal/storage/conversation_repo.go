package storage

import (
	"context"
	"fmt"

	"docqa/internal/models"
)

// ConversationRepo keeps conversation turns in the conversations table.
type ConversationRepo struct {
	db     *DB
	schema *Schema
}

func NewConversationRepo(db *DB, schema *Schema) *ConversationRepo {
	return &ConversationRepo{db: db, schema: schema}
}

func (r *ConversationRepo) Append(ctx context.Context, t models.ConversationTurn) error {
	if err := r.schema.Ensure(ctx); err != nil {
		return err
	}
	sources := t.Sources
	if sources == nil {
		sources = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO conversations (interaction_id, session_id, ts, question, answer, sources)
VALUES ($1, $2, $3, $4, $5, $6)`,
		t.TurnID, t.SessionID, t.Timestamp, t.Question, t.Answer, sources,
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

// Recent returns up to limit turns of a session, newest first.
func (r *ConversationRepo) Recent(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if err := r.schema.Ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT interaction_id, session_id, ts, question, answer, sources
FROM conversations
WHERE session_id = $1
ORDER BY ts DESC, interaction_id DESC
LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation turns: %w", err)
	}
	defer rows.Close()
	out := make([]models.ConversationTurn, 0, limit)
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.TurnID, &t.SessionID, &t.Timestamp, &t.Question, &t.Answer, &t.Sources); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return out, nil
}

func (r *ConversationRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.schema.Ensure(ctx); err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}
