package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "node.key")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Len(t, first.NodeKey(), 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, first.NodeKey(), second.NodeKey())
}

func TestLoadOrCreate_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	require.NoError(t, os.WriteFile(path, []byte("not hex"), 0o600))

	_, err := LoadOrCreate(path)
	assert.ErrorIs(t, err, ErrInvalidKeyFile)
}
