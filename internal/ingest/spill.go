package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"docqa/internal/util"
)

const (
	spillData  = "chunks.dat"
	spillIndex = "chunks.idx"
)

var errOrdinalOutOfRange = errors.New("chunk ordinal out of range")

// SpillChunks writes chunks to dir as one concatenated data file plus an
// index of len(chunks)+1 big-endian byte offsets, so a single chunk can be
// read back without loading the rest.
func SpillChunks(dir string, chunks []string) error {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	index := make([]byte, 8*(len(chunks)+1))
	for i, c := range chunks {
		binary.BigEndian.PutUint64(index[8*i:], uint64(len(data)))
		data = append(data, c...)
	}
	binary.BigEndian.PutUint64(index[8*len(chunks):], uint64(len(data)))

	if err := util.WriteFileAtomic(filepath.Join(dir, spillData), data); err != nil {
		return fmt.Errorf("spill chunk data: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, spillIndex), index); err != nil {
		return fmt.Errorf("spill chunk index: %w", err)
	}
	return nil
}

// ReadSpilledChunk returns the chunk at ordinal from a directory written by
// SpillChunks.
func ReadSpilledChunk(dir string, ordinal int) (string, error) {
	if ordinal < 0 {
		return "", errOrdinalOutOfRange
	}
	idx, err := os.Open(filepath.Join(dir, spillIndex))
	if err != nil {
		return "", fmt.Errorf("open chunk index: %w", err)
	}
	defer idx.Close()
	var bounds [16]byte
	if _, err := idx.ReadAt(bounds[:], int64(8*ordinal)); err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %d", errOrdinalOutOfRange, ordinal)
		}
		return "", fmt.Errorf("read chunk index: %w", err)
	}
	start := binary.BigEndian.Uint64(bounds[:8])
	end := binary.BigEndian.Uint64(bounds[8:])
	if end < start {
		return "", fmt.Errorf("corrupt chunk index at ordinal %d", ordinal)
	}

	f, err := os.Open(filepath.Join(dir, spillData))
	if err != nil {
		return "", fmt.Errorf("open chunk data: %w", err)
	}
	defer f.Close()
	buf := make([]byte, end-start)
	if _, err := f.ReadAt(buf, int64(start)); err != nil && !(errors.Is(err, io.EOF) && len(buf) == 0) {
		return "", fmt.Errorf("read chunk %d: %w", ordinal, err)
	}
	return string(buf), nil
}
