package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/types"
)

func newTestIngestService(t *testing.T, store *fakeStore) *IngestService {
	t.Helper()
	embedder, err := NewEmbeddingService(EmbeddingConfig{AllowFallback: true})
	require.NoError(t, err)
	vectors := database.NewQdrantStore(database.QdrantConfig{})
	extractor := NewExtractService(ExtractConfig{})
	return NewIngestService(store, vectors, embedder, extractor, IngestConfig{})
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFileEndToEnd(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)

	content := strings.Repeat("pump maintenance detail ", 50) // 1200 chars
	path := writeTempFile(t, "manual.txt", content)

	result, err := svc.IngestFile(context.Background(), path, "text/plain", int64(len(content)), types.IngestMetadata{
		Title:     "Pump manual",
		RelatedTo: types.EntityRef{Type: types.EntityAsset, ID: 7},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SnippetCount)
	assert.Len(t, result.SnippetIDs, 3)
	assert.NotZero(t, result.DocumentID)
	assert.NotZero(t, result.AttachmentID)
	assert.Equal(t, ProviderMock, result.Provider)
	assert.NotEmpty(t, result.Hash)
	assert.Zero(t, result.DuplicateOfDocID)
	assert.False(t, result.VectorIndexed) // vector store disabled

	require.NotNil(t, store.savedDoc)
	assert.Equal(t, "Pump manual", store.savedDoc.Title)
	assert.Equal(t, SourceSystemUpload, store.savedDoc.SourceSystem)

	require.NotNil(t, store.savedAtt)
	require.NotNil(t, store.savedAtt.AssetID)
	assert.Equal(t, int64(7), *store.savedAtt.AssetID)

	require.Len(t, store.savedSnippets, 3)
	assert.Equal(t, "Pump manual (part 1/3)", store.savedSnippets[0].Label)
	assert.NotEmpty(t, store.savedSnippets[0].Embedding)
	assert.Equal(t, MockDimension, store.savedSnippets[0].EmbeddingDim)

	require.Len(t, store.savedEdges, 1)
	assert.Equal(t, types.EntityAsset, store.savedEdges[0].EntityType)
	assert.Equal(t, int64(7), store.savedEdges[0].EntityID)

	require.Len(t, store.usage, 1)
	assert.Equal(t, 3, store.usage[0].VectorCount)
	assert.Equal(t, ProviderMock, store.usage[0].Provider)
}

func TestIngestFileUnsupportedMime(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)
	path := writeTempFile(t, "archive.zip", "zipzipzip")

	_, err := svc.IngestFile(context.Background(), path, "application/zip", 9, types.IngestMetadata{Title: "archive"})
	assert.ErrorIs(t, err, ErrUnsupportedMime)
	assert.Nil(t, store.savedDoc)
	assert.Empty(t, store.usage)
}

func TestIngestFileInvalidEntity(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)
	path := writeTempFile(t, "note.txt", "hello")

	_, err := svc.IngestFile(context.Background(), path, "text/plain", 5, types.IngestMetadata{
		Title:     "note",
		RelatedTo: types.EntityRef{Type: "warehouse", ID: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidEntity)
	assert.Nil(t, store.savedDoc)
}

func TestIngestZeroByteFileYieldsMetadataSnippet(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)
	path := writeTempFile(t, "empty.txt", "")

	result, err := svc.IngestFile(context.Background(), path, "text/plain", 0, types.IngestMetadata{
		Title:       "empty report",
		Description: "placeholder",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SnippetCount)
	require.Len(t, store.savedSnippets, 1)
	assert.Equal(t, "File: empty report - placeholder", store.savedSnippets[0].Content)
	assert.Equal(t, "empty report", store.savedSnippets[0].Label)
}

func TestIngestFileReportsDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)

	content := "identical content"
	first := writeTempFile(t, "a.txt", content)
	result1, err := svc.IngestFile(context.Background(), first, "text/plain", int64(len(content)), types.IngestMetadata{Title: "first"})
	require.NoError(t, err)

	store.byHash[result1.Hash] = store.savedDoc

	second := writeTempFile(t, "b.txt", content)
	result2, err := svc.IngestFile(context.Background(), second, "text/plain", int64(len(content)), types.IngestMetadata{Title: "second"})
	require.NoError(t, err)

	// The duplicate is still ingested, but flagged.
	assert.NotZero(t, result2.DocumentID)
	assert.Equal(t, result1.DocumentID, result2.DuplicateOfDocID)
}

func TestIngestTextManualNote(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)

	result, err := svc.IngestText(context.Background(), types.IngestTextRequest{
		Content: "reset the controller before swapping the sensor",
		Label:   "field note",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SnippetCount)
	require.Len(t, store.created, 1)
	assert.Equal(t, types.SourceManual, store.created[0].SourceKind)
	assert.Equal(t, "field note", store.created[0].Label)
	assert.NotEmpty(t, store.created[0].Embedding)
}

func TestIngestTextLinkedToTicket(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)

	_, err := svc.IngestText(context.Background(), types.IngestTextRequest{
		Content:   "customer confirmed the fix",
		RelatedTo: &types.EntityRef{Type: types.EntityTicket, ID: 99},
	})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, types.SourceTicket, store.created[0].SourceKind)
	assert.Equal(t, int64(99), store.created[0].SourceID)
}

func TestIngestTextValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestIngestService(t, store)

	_, err := svc.IngestText(context.Background(), types.IngestTextRequest{Content: "  "})
	assert.Error(t, err)

	_, err = svc.IngestText(context.Background(), types.IngestTextRequest{
		Content:   "note",
		RelatedTo: &types.EntityRef{Type: types.EntityTicket, ID: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestIngestConfigurationErrorHasNoSideEffects(t *testing.T) {
	store := newFakeStore()
	embedder, err := NewEmbeddingService(EmbeddingConfig{AllowFallback: false})
	require.NoError(t, err)
	svc := NewIngestService(store, database.NewQdrantStore(database.QdrantConfig{}), embedder, NewExtractService(ExtractConfig{}), IngestConfig{})

	path := writeTempFile(t, "doc.txt", "some content")
	_, err = svc.IngestFile(context.Background(), path, "text/plain", 12, types.IngestMetadata{Title: "doc"})
	require.ErrorIs(t, err, ErrEmbeddingNotConfigured)

	assert.Nil(t, store.savedDoc)
	assert.Nil(t, store.savedAtt)
	assert.Empty(t, store.usage)
}
