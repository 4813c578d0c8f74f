package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"docqa/internal/models"
	"docqa/internal/vector"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	stmts := schemaStatements(768)
	require.NotEmpty(t, stmts)
	for _, stmt := range stmts {
		require.Contains(t, stmt, "IF NOT EXISTS")
	}
	require.Contains(t, strings.Join(stmts, "\n"), "vector(768)")
}

// openTestDB connects to DOCQA_TEST_POSTGRES_URL, a pgvector-enabled database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("DOCQA_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("DOCQA_TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestPostgresChunksAndSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	schema := NewSchema(db, 3)
	require.NoError(t, schema.Ensure(ctx))
	require.NoError(t, NewSchema(db, 3).Ensure(ctx))

	docID := uuid.NewString()
	repo := NewChunkRepo(db)
	require.NoError(t, repo.InsertChunk(ctx, models.Chunk{ChunkID: docID + "_0", DocumentID: docID, Filename: "sky.txt", Ordinal: 0, Content: "The sky is blue.", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, repo.InsertChunk(ctx, models.Chunk{ChunkID: docID + "_1", DocumentID: docID, Filename: "sky.txt", Ordinal: 1, Content: "Water is wet.", Embedding: []float32{0, 1, 0}}))
	n, err := repo.CountChunks(ctx, docID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	s := vector.NewSearcher(db.Pool, schema)
	got, err := s.CombinedSearch(ctx, vector.Query{Text: "sky", Embedding: []float32{1, 0, 0}, Limit: 2, SemanticWeight: 0.5})
	require.NoError(t, err)
	require.LessOrEqual(t, len(got), 2)
	require.Equal(t, "The sky is blue.", got[0].Content)

	lex, err := s.LexicalSearch(ctx, "what about water", 5)
	require.NoError(t, err)
	require.NotEmpty(t, lex)
}

func TestPostgresConversationRepo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepo(db, NewSchema(db, 3))
	session := "test-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, models.ConversationTurn{
			TurnID:    session + "_" + uuid.NewString(),
			SessionID: session,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Question:  "q",
			Answer:    "a",
		}))
	}
	recent, err := repo.Recent(ctx, session, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.True(t, recent[0].Timestamp.After(recent[1].Timestamp))

	require.NoError(t, repo.DeleteSession(ctx, session))
	require.NoError(t, repo.DeleteSession(ctx, session))
	recent, err = repo.Recent(ctx, session, 2)
	require.NoError(t, err)
	require.Empty(t, recent)
}
