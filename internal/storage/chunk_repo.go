package storage

import (
	"context"
	"fmt"

	"docqa/internal/models"
	"docqa/internal/vector"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertChunk writes one embedded chunk. Re-inserting the same chunk_id
// replaces its content, so a retried write is harmless.
func (r *ChunkRepo) InsertChunk(ctx context.Context, c models.Chunk) error {
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %s has no embedding", c.ChunkID)
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO chunks (chunk_id, doc_id, filename, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6::vector)
ON CONFLICT (chunk_id)
DO UPDATE SET
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding`,
		c.ChunkID, c.DocumentID, c.Filename, c.Ordinal, c.Content, vector.ToLiteral(c.Embedding),
	)
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
	}
	return nil
}

// CountChunks reports how many chunks of a document are indexed.
func (r *ChunkRepo) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE doc_id = $1`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
