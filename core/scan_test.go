package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":          "bravo",
		"a.txt":          "alpha",
		"sub/nested.bin": "nested content",
	})

	entries, total, err := ScanDirectory(root, "sha256", DefaultHashChunkSize)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Lexical walk order, forward-slash relative paths.
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, "b.txt", entries[1].Path)
	assert.Equal(t, "sub/nested.bin", entries[2].Path)

	assert.Equal(t, int64(len("alpha")+len("bravo")+len("nested content")), total)

	for _, e := range entries {
		want, err := HashFile(filepath.Join(root, filepath.FromSlash(e.Path)), "sha256", DefaultHashChunkSize)
		require.NoError(t, err)
		assert.Equal(t, want, e.Hash)
	}
}

func TestScanDirectorySkipsNonRegular(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"keep.txt": "keep"})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "keep.txt"), filepath.Join(root, "link.txt")))

	entries, total, err := ScanDirectory(root, "sha256", DefaultHashChunkSize)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Path)
	assert.Equal(t, int64(4), total)
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	_, _, err := ScanDirectory(filepath.Join(t.TempDir(), "nope"), "sha256", DefaultHashChunkSize)
	assert.Error(t, err)
}
