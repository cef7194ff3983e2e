package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	svc := NewExtractService(ExtractConfig{})
	text := strings.Repeat("a", 1200)

	chunks := svc.Chunk(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 200)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkEmpty(t *testing.T) {
	svc := NewExtractService(ExtractConfig{})
	assert.Nil(t, svc.Chunk(""))
}

func TestChunkMultibyte(t *testing.T) {
	svc := NewExtractService(ExtractConfig{ChunkSize: 100})
	text := strings.Repeat("日本語テキスト", 40) // 240 runes

	chunks := svc.Chunk(text)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><style>body { color: red }</style></head>
	<body><h1>Maintenance   Guide</h1>
	<script>alert("nope")</script>
	<p>Replace the   filter monthly.</p>
	<noscript>enable js</noscript></body></html>`

	text, err := ExtractHTML(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Maintenance Guide Replace the filter monthly.", text)
}

func TestSupportedMime(t *testing.T) {
	svc := NewExtractService(ExtractConfig{})

	assert.True(t, svc.SupportedMime("application/pdf"))
	assert.True(t, svc.SupportedMime("text/plain"))
	assert.True(t, svc.SupportedMime("text/html"))
	assert.True(t, svc.SupportedMime("image/png"))
	assert.True(t, svc.SupportedMime("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.False(t, svc.SupportedMime("application/zip"))
	assert.False(t, svc.SupportedMime("video/mp4"))
}

func TestExtractFilePlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\r\nline two\x00"), 0o644))

	svc := NewExtractService(ExtractConfig{})
	text, err := svc.ExtractFile(context.Background(), path, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestExtractFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0o644))

	svc := NewExtractService(ExtractConfig{MaxFileBytes: 32})
	_, err := svc.ExtractFile(context.Background(), path, "text/plain")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestExtractFileImageYieldsNoText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o644))

	svc := NewExtractService(ExtractConfig{})
	text, err := svc.ExtractFile(context.Background(), path, "image/png")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMetadataSnippetContent(t *testing.T) {
	assert.Equal(t, "File: manual.pdf - vendor manual", MetadataSnippetContent("manual.pdf", "vendor manual"))
	assert.Equal(t, "File: manual.pdf - No description available", MetadataSnippetContent("manual.pdf", ""))
}
