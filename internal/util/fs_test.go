package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "doc.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("hello")))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSafeJoinStripsDirectories(t *testing.T) {
	require.Equal(t, filepath.Join("/data", "evil.txt"), SafeJoin("/data", "../../etc/evil.txt"))
}
