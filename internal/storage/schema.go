package storage

import (
	"context"
	"fmt"
	"sync"
)

// schemaLockKey serialises schema creation across processes sharing one database.
const schemaLockKey int64 = 0x646f637161

func schemaStatements(dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
  chunk_id    TEXT PRIMARY KEY,
  doc_id      TEXT NOT NULL,
  filename    TEXT NOT NULL,
  chunk_index INT NOT NULL,
  content     TEXT NOT NULL,
  embedding   vector(%d) NOT NULL,
  content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, dim),
		`CREATE INDEX IF NOT EXISTS chunks_doc_idx ON chunks (doc_id, chunk_index)`,
		`CREATE INDEX IF NOT EXISTS chunks_content_tsv_idx ON chunks USING GIN (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS conversations (
  interaction_id TEXT PRIMARY KEY,
  session_id     TEXT NOT NULL,
  ts             TIMESTAMPTZ NOT NULL,
  question       TEXT NOT NULL,
  answer         TEXT NOT NULL,
  sources        TEXT[] NOT NULL DEFAULT '{}'
)`,
		`CREATE INDEX IF NOT EXISTS conversations_session_ts_idx ON conversations (session_id, ts DESC)`,
	}
}

// Schema creates the chunk and conversation tables on first use. A failed
// attempt is retried on the next call.
type Schema struct {
	db    *DB
	dim   int
	mu    sync.Mutex
	ready bool
}

func NewSchema(db *DB, dim int) *Schema {
	return &Schema{db: db, dim: dim}
}

func (s *Schema) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx ensure schema: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}
	for _, stmt := range schemaStatements(s.dim) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	s.ready = true
	return nil
}
