package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordedQuery struct {
	sql  string
	args []any
}

// fakeQueryer records statements and answers them in order.
type fakeQueryer struct {
	calls   []recordedQuery
	answers []fakeAnswer
}

type fakeAnswer struct {
	rows [][]any
	err  error
}

func (f *fakeQueryer) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, recordedQuery{sql: sql, args: args})
	if len(f.answers) == 0 {
		return &fakeRows{}, nil
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	if a.err != nil {
		return nil, a.err
	}
	return &fakeRows{rows: a.rows, pos: -1}, nil
}

type fakeRows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }

func (r *fakeRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		case **float64:
			if row[i] == nil {
				*p = nil
				continue
			}
			v := row[i].(float64)
			*p = &v
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type countingSchema struct {
	calls int
	err   error
}

func (s *countingSchema) Ensure(context.Context) error {
	s.calls++
	return s.err
}

func TestCombinedSearchStatementAndArgs(t *testing.T) {
	q := &fakeQueryer{answers: []fakeAnswer{{rows: [][]any{
		{"The sky is blue.", "facts.txt", "doc1", 0, 0.0161},
		{"Water is wet.", "facts.txt", "doc1", 1, nil},
	}}}}
	schema := &countingSchema{}
	s := NewSearcher(q, schema)

	results, err := s.CombinedSearch(context.Background(), Query{Text: "sky colour", Embedding: []float32{1, 0.5}, Limit: 3, SemanticWeight: 0.7})
	require.NoError(t, err)
	require.Equal(t, 1, schema.calls)
	require.Len(t, q.calls, 1)

	call := q.calls[0]
	require.Equal(t, []any{"sky colour", "[1,0.5]", 3, 0.7}, call.args)
	for _, fragment := range []string{
		"to_tsvector('english', $1)",
		"string_agg(quote_literal(lex), ' | ')",
		"ts_rank_cd(c.content_tsv, query.q)",
		"c.embedding <=> $2::vector",
		"FULL OUTER JOIN semantic s ON s.chunk_id = l.chunk_id",
		"(1 - $4::float8) / (60 + l.rank)",
		"$4::float8 / (60 + s.rank)",
		"ORDER BY f.score DESC, c.chunk_id",
	} {
		require.Contains(t, call.sql, fragment)
	}
	require.Equal(t, 3, strings.Count(call.sql, "LIMIT $3"))

	require.Len(t, results, 2)
	require.Equal(t, "The sky is blue.", results[0].Content)
	require.Equal(t, "doc1", results[0].DocumentID)
	require.InDelta(t, 0.0161, results[0].RelevanceScore, 1e-9)
	require.Equal(t, 1, results[1].ChunkIndex)
	require.Equal(t, 0.0, results[1].RelevanceScore)
}

func TestLexicalSearchStatementAndArgs(t *testing.T) {
	q := &fakeQueryer{answers: []fakeAnswer{{rows: [][]any{{"Water is wet.", "facts.txt", "doc1", 1, 0.1}}}}}
	results, err := NewSearcher(q, nil).LexicalSearch(context.Background(), "wet water", 4)
	require.NoError(t, err)
	require.Len(t, results, 1)

	call := q.calls[0]
	require.Equal(t, []any{"wet water", 4}, call.args)
	require.Contains(t, call.sql, "WHERE c.content_tsv @@ query.q")
	require.Contains(t, call.sql, "LIMIT $2")
	require.NotContains(t, call.sql, "<=>")
}

func TestSearcherErrors(t *testing.T) {
	_, err := NewSearcher(&fakeQueryer{}, nil).CombinedSearch(context.Background(), Query{Text: "x", Limit: 1})
	require.ErrorIs(t, err, errEmptyEmbedding)

	schema := &countingSchema{err: errors.New("no database")}
	q := &fakeQueryer{}
	_, err = NewSearcher(q, schema).LexicalSearch(context.Background(), "x", 1)
	require.ErrorIs(t, err, schema.err)
	require.Empty(t, q.calls)

	boom := errors.New("relation does not exist")
	q = &fakeQueryer{answers: []fakeAnswer{{err: boom}}}
	_, err = NewSearcher(q, nil).CombinedSearch(context.Background(), Query{Text: "x", Embedding: []float32{1}, Limit: 1})
	require.ErrorIs(t, err, boom)
}

func TestCombinerOverSearcherFallsBackToLexicalSQL(t *testing.T) {
	q := &fakeQueryer{answers: []fakeAnswer{
		{err: errors.New("operator does not exist: vector <=> vector")},
		{rows: [][]any{{"The sky is blue.", "facts.txt", "doc1", 0, 0.2}}},
	}}
	c := NewCombiner(NewSearcher(q, nil), time.Second)

	results, err := c.Search(context.Background(), Query{Text: "sky", Embedding: []float32{1}, Limit: 6, SemanticWeight: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, q.calls, 2)
	require.Contains(t, q.calls[0].sql, "<=>")
	require.NotContains(t, q.calls[1].sql, "<=>")
	require.Equal(t, []any{"sky", 6}, q.calls[1].args)
}
