package util

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrEmptyFilename = errors.New("filename is required")
)

// ExtractionError reports a byte stream that cannot be parsed as the format
// implied by its filename.
type ExtractionError struct {
	Filename string
	Format   string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s text from %q: %v", e.Format, e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DecodeError reports plain-text uploads that are not valid UTF-8.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q as utf-8: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

type LanguageModelError struct {
	Stage string
	Err   error
}

func (e *LanguageModelError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("language model failed: %v", e.Err)
	}
	return fmt.Sprintf("language model failed during %s: %v", e.Stage, e.Err)
}

func (e *LanguageModelError) Unwrap() error { return e.Err }

// SearchUnavailableError means both the combined and the lexical fallback
// search failed.
type SearchUnavailableError struct {
	Combined error
	Fallback error
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("search unavailable: combined: %v; lexical fallback: %v", e.Combined, e.Fallback)
}

func (e *SearchUnavailableError) Unwrap() []error {
	return []error{e.Combined, e.Fallback}
}

// IndexingError is a partial ingestion. Chunks 0..LastOrdinal stay indexed;
// LastOrdinal is -1 when nothing was written.
type IndexingError struct {
	DocumentID  string
	LastOrdinal int
	Err         error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("index document %s stopped after ordinal %d: %v", e.DocumentID, e.LastOrdinal, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }
