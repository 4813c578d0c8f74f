// Package ingest turns uploaded files into embedded, searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"docqa/internal/extract"
	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/util"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

type Embedder interface {
	Embed(ctx context.Context, text string, mode providers.TaskMode) ([]float32, error)
}

type ChunkWriter interface {
	InsertChunk(ctx context.Context, c models.Chunk) error
}

// Indexer runs extract, chunk, embed and write for one document at a time.
// Chunks are embedded and written strictly in ordinal order; the first
// failure stops the document.
type Indexer struct {
	schema    SchemaEnsurer
	embedder  Embedder
	writer    ChunkWriter
	chunkSize int
	workers   int
	logger    *slog.Logger
}

func NewIndexer(schema SchemaEnsurer, embedder Embedder, writer ChunkWriter, chunkSize, workers int) *Indexer {
	if chunkSize <= 0 {
		chunkSize = util.DefaultChunkSize
	}
	if workers <= 0 {
		workers = 4
	}
	return &Indexer{
		schema:    schema,
		embedder:  embedder,
		writer:    writer,
		chunkSize: chunkSize,
		workers:   workers,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// Prepared is a document that has been extracted and chunked but not embedded.
type Prepared struct {
	Document models.Document
	Chunks   []string
}

// Prepare extracts text and splits it into chunks. An empty documentID gets
// a fresh one.
func (ix *Indexer) Prepare(ctx context.Context, documentID, filename string, data []byte) (Prepared, error) {
	if strings.TrimSpace(filename) == "" {
		return Prepared{}, util.ErrEmptyFilename
	}
	if err := ctx.Err(); err != nil {
		return Prepared{}, err
	}
	text, err := extract.Extract(filename, data)
	if err != nil {
		return Prepared{}, err
	}
	if documentID == "" {
		documentID = uuid.NewString()
	}
	return Prepared{
		Document: models.Document{
			DocumentID: documentID,
			Filename:   filename,
			RawFormat:  extract.Format(filename),
		},
		Chunks: util.SplitWords(text, ix.chunkSize),
	}, nil
}

// Ingest indexes one file and returns its document id. A failure part way
// through yields *util.IndexingError; chunks written before it stay indexed.
func (ix *Indexer) Ingest(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ix.EnsureSchema(ctx); err != nil {
		return "", err
	}
	p, err := ix.Prepare(ctx, "", filename, data)
	if err != nil {
		return "", err
	}
	log := ix.logger.With("document_id", p.Document.DocumentID, "filename", filename)
	for i, content := range p.Chunks {
		if err := ix.IndexChunk(ctx, p.Document, i, content); err != nil {
			log.Error("indexing stopped", "ordinal", i, "err", err)
			return p.Document.DocumentID, &util.IndexingError{DocumentID: p.Document.DocumentID, LastOrdinal: i - 1, Err: err}
		}
	}
	log.Info("document indexed", "chunks", len(p.Chunks), "format", p.Document.RawFormat)
	return p.Document.DocumentID, nil
}

func (ix *Indexer) EnsureSchema(ctx context.Context) error {
	if err := ix.schema.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure search index: %w", err)
	}
	return nil
}

// IndexChunk embeds one chunk in document mode and writes it.
func (ix *Indexer) IndexChunk(ctx context.Context, doc models.Document, ordinal int, content string) error {
	vec, err := ix.embedder.Embed(ctx, content, providers.TaskDocument)
	if err != nil {
		return err
	}
	return ix.writer.InsertChunk(ctx, models.Chunk{
		ChunkID:    ChunkID(doc.DocumentID, ordinal),
		DocumentID: doc.DocumentID,
		Filename:   doc.Filename,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  vec,
	})
}

func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

type File struct {
	Filename string
	Data     []byte
}

type Outcome struct {
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id,omitempty"`
	Err        error  `json:"-"`
}

// IngestMany indexes files concurrently on a bounded pool. Outcomes keep the
// order of files.
func (ix *Indexer) IngestMany(ctx context.Context, files []File) ([]Outcome, error) {
	out := make([]Outcome, len(files))
	if len(files) == 0 {
		return out, nil
	}
	pool, err := ants.NewPool(min(ix.workers, len(files)))
	if err != nil {
		return nil, fmt.Errorf("create ingest pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, f := range files {
		i, f := i, f
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			id, err := ix.Ingest(ctx, f.Filename, f.Data)
			out[i] = Outcome{Filename: f.Filename, DocumentID: id, Err: err}
		})
		if err != nil {
			wg.Done()
			out[i] = Outcome{Filename: f.Filename, Err: fmt.Errorf("submit ingest: %w", err)}
		}
	}
	wg.Wait()
	return out, nil
}
