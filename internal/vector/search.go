package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"docqa/internal/models"

	"github.com/jackc/pgx/v5"
)

const rrfK = 60

var errEmptyEmbedding = errors.New("query embedding is empty")

// Searcher runs lexical and vector queries against the chunks table.
type Searcher struct {
	q      Queryer
	schema SchemaEnsurer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SchemaEnsurer creates the chunks table before the first query.
type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

// NewSearcher returns a Searcher over q. schema may be nil when the tables
// are known to exist.
func NewSearcher(q Queryer, schema SchemaEnsurer) *Searcher {
	return &Searcher{q: q, schema: schema}
}

func (s *Searcher) ensure(ctx context.Context) error {
	if s.schema == nil {
		return nil
	}
	return s.schema.Ensure(ctx)
}

// anyTermQuery ORs the english lexemes of $1 so a chunk matching any query
// term qualifies. Lexemes are already stemmed, hence the 'simple' config.
const anyTermQuery = `
query AS (
  SELECT to_tsquery('simple', COALESCE(string_agg(quote_literal(lex), ' | '), '')) AS q
  FROM unnest(tsvector_to_array(to_tsvector('english', $1))) AS lex
)`

// combinedSQL fuses lexical and nearest-neighbour ranks with weighted
// reciprocal rank fusion; $4 is the semantic weight.
var combinedSQL = `
WITH` + anyTermQuery + `,
lexical AS (
  SELECT c.chunk_id,
         row_number() OVER (ORDER BY ts_rank_cd(c.content_tsv, query.q) DESC, c.chunk_id) AS rank
  FROM chunks c, query
  WHERE c.content_tsv @@ query.q
  ORDER BY rank
  LIMIT $3
),
semantic AS (
  SELECT c.chunk_id,
         row_number() OVER (ORDER BY c.embedding <=> $2::vector, c.chunk_id) AS rank
  FROM chunks c
  ORDER BY c.embedding <=> $2::vector, c.chunk_id
  LIMIT $3
),
fused AS (
  SELECT COALESCE(l.chunk_id, s.chunk_id) AS chunk_id,
         COALESCE((1 - $4::float8) / (` + strconv.Itoa(rrfK) + ` + l.rank), 0)
       + COALESCE($4::float8 / (` + strconv.Itoa(rrfK) + ` + s.rank), 0) AS score
  FROM lexical l
  FULL OUTER JOIN semantic s ON s.chunk_id = l.chunk_id
)
SELECT c.content, c.filename, c.doc_id, c.chunk_index, f.score::float8
FROM fused f
JOIN chunks c ON c.chunk_id = f.chunk_id
ORDER BY f.score DESC, c.chunk_id
LIMIT $3`

var lexicalSQL = `
WITH` + anyTermQuery + `
SELECT c.content, c.filename, c.doc_id, c.chunk_index, ts_rank_cd(c.content_tsv, query.q)::float8 AS score
FROM chunks c, query
WHERE c.content_tsv @@ query.q
ORDER BY score DESC, c.chunk_id
LIMIT $2`

// CombinedSearch issues one lexical+vector request; fusion happens in Postgres.
func (s *Searcher) CombinedSearch(ctx context.Context, q Query) ([]models.SearchResult, error) {
	if len(q.Embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, combinedSQL, q.Text, ToLiteral(q.Embedding), q.Limit, q.SemanticWeight)
	if err != nil {
		return nil, fmt.Errorf("query combined search: %w", err)
	}
	return scanResults(rows, q.Limit)
}

func (s *Searcher) LexicalSearch(ctx context.Context, text string, limit int) ([]models.SearchResult, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, lexicalSQL, text, limit)
	if err != nil {
		return nil, fmt.Errorf("query lexical search: %w", err)
	}
	return scanResults(rows, limit)
}

func scanResults(rows pgx.Rows, limit int) ([]models.SearchResult, error) {
	defer rows.Close()
	results := make([]models.SearchResult, 0, limit)
	for rows.Next() {
		var (
			r     models.SearchResult
			score *float64
		)
		if err := rows.Scan(&r.Content, &r.Filename, &r.DocumentID, &r.ChunkIndex, &score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		if score != nil {
			r.RelevanceScore = *score
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// ToLiteral renders v in pgvector's text input format.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
