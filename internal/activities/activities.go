package activities

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docqa/internal/ingest"
	"docqa/internal/models"
	"docqa/internal/util"

	"go.temporal.io/sdk/temporal"
)

// Error types reported to workflows for failures that must not be retried.
const (
	ErrTypeExtraction = "ExtractionError"
	ErrTypeDecode     = "DecodeError"
)

type Activities struct {
	indexer *ingest.Indexer
}

func New(indexer *ingest.Indexer) *Activities {
	return &Activities{indexer: indexer}
}

func (a *Activities) EnsureSchemaActivity(ctx context.Context) error {
	return a.indexer.EnsureSchema(ctx)
}

// PrepareDocumentActivity reads a staged upload and returns its chunk texts.
func (a *Activities) PrepareDocumentActivity(ctx context.Context, in PrepareDocumentInput) (PrepareDocumentOutput, error) {
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return PrepareDocumentOutput{}, fmt.Errorf("read staged upload: %w", err)
	}
	p, err := a.indexer.Prepare(ctx, in.DocumentID, in.Filename, data)
	if err != nil {
		var exErr *util.ExtractionError
		var decErr *util.DecodeError
		switch {
		case errors.As(err, &exErr):
			return PrepareDocumentOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeExtraction, err)
		case errors.As(err, &decErr):
			return PrepareDocumentOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeDecode, err)
		}
		return PrepareDocumentOutput{}, err
	}
	spill := SpillDir(in.Path)
	if err := ingest.SpillChunks(spill, p.Chunks); err != nil {
		return PrepareDocumentOutput{}, err
	}
	return PrepareDocumentOutput{RawFormat: p.Document.RawFormat, TotalChunks: len(p.Chunks), SpillDir: spill}, nil
}

// SpillDir is where the chunk texts of the upload staged at path are kept.
func SpillDir(path string) string {
	return path + ".chunks"
}

func (a *Activities) IndexChunkActivity(ctx context.Context, in IndexChunkInput) error {
	content, err := ingest.ReadSpilledChunk(in.SpillDir, in.Ordinal)
	if err != nil {
		return fmt.Errorf("load chunk %d: %w", in.Ordinal, err)
	}
	doc := models.Document{DocumentID: in.DocumentID, Filename: in.Filename}
	return a.indexer.IndexChunk(ctx, doc, in.Ordinal, content)
}

func (a *Activities) RemoveStagedFileActivity(_ context.Context, in RemoveStagedFileInput) error {
	if err := os.Remove(in.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged upload: %w", err)
	}
	if in.SpillDir != "" {
		if err := os.RemoveAll(in.SpillDir); err != nil {
			return fmt.Errorf("remove spilled chunks: %w", err)
		}
	}
	return nil
}
