package utils

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUpload(t *testing.T) {
	dir := t.TempDir()
	content := "attachment body"

	path, size, hash, err := SaveUpload(dir, "report.pdf", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
	assert.Equal(t, BytesSHA256([]byte(content)), hash)
	assert.True(t, strings.HasSuffix(path, "_report.pdf"))

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(stored))

	// A second save of the same name must not collide.
	other, _, _, err := SaveUpload(dir, "report.pdf", strings.NewReader(content))
	require.NoError(t, err)
	assert.NotEqual(t, path, other)
}

func TestFileSHA256(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/f.txt"
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	hash, err := FileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)

	_, err = FileSHA256(dir + "/missing.txt")
	assert.Error(t, err)
}
