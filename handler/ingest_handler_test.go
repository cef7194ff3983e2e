package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/service"
	"github.com/opsgraph/knowledge-be/types"
)

func newIngestRouter(t *testing.T, store *stubStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	embedder, err := service.NewEmbeddingService(service.EmbeddingConfig{AllowFallback: true})
	require.NoError(t, err)
	ingestService := service.NewIngestService(
		store,
		database.NewQdrantStore(database.QdrantConfig{}),
		embedder,
		service.NewExtractService(service.ExtractConfig{}),
		service.IngestConfig{},
	)

	router := gin.New()
	h := NewIngestHandler(ingestService, t.TempDir(), 0)
	router.POST("/knowledge/ingest", h.HandleIngestFile)
	router.POST("/knowledge/snippets", h.HandleIngestText)
	return router
}

func multipartUpload(t *testing.T, filename, mimeType, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	if metadata != "" {
		require.NoError(t, writer.WriteField("metadata", metadata))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestHandleIngestFileMissingPart(t *testing.T) {
	router := newIngestRouter(t, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/knowledge/ingest", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIngestFileUnsupportedMime(t *testing.T) {
	router := newIngestRouter(t, &stubStore{})

	body, contentType := multipartUpload(t, "archive.zip", "application/zip", "zip bytes", "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/knowledge/ingest", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestHandleIngestFileInvalidMetadata(t *testing.T) {
	router := newIngestRouter(t, &stubStore{})

	body, contentType := multipartUpload(t, "note.txt", "text/plain", "hello", "{not json")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/knowledge/ingest", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIngestFileSuccess(t *testing.T) {
	router := newIngestRouter(t, &stubStore{})

	meta := `{"title":"Field note","related_to":{"type":"ticket","id":42}}`
	body, contentType := multipartUpload(t, "note.txt", "text/plain", "the breaker was tripped", meta)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/knowledge/ingest", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope types.DataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Status)

	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var result types.IngestResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, 1, result.SnippetCount)
	assert.False(t, result.VectorIndexed)
}

func TestHandleIngestTextValidation(t *testing.T) {
	router := newIngestRouter(t, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/knowledge/snippets", bytes.NewBufferString(`{"content":""}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
