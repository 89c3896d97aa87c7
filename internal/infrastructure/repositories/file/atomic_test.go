package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_KeepsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-03-01.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))
	require.NoError(t, os.Chmod(path, 0644))

	require.NoError(t, writeFileAtomic(path, []byte("new\n")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteFileAtomic_NewFileIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairings.json")

	require.NoError(t, writeFileAtomic(path, []byte("{}")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}
