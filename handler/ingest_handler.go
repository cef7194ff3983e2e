package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opsgraph/knowledge-be/service"
	"github.com/opsgraph/knowledge-be/types"
	"github.com/opsgraph/knowledge-be/utils"
)

type IngestHandler struct {
	ingestService *service.IngestService
	uploadDir     string
	maxFileBytes  int64
}

func NewIngestHandler(ingestService *service.IngestService, uploadDir string, maxFileBytes int64) *IngestHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = 50 << 20
	}
	return &IngestHandler{
		ingestService: ingestService,
		uploadDir:     uploadDir,
		maxFileBytes:  maxFileBytes,
	}
}

// HandleIngestFile accepts a multipart upload with a "file" part and a
// "metadata" part holding JSON ingest metadata.
func (h *IngestHandler) HandleIngestFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid file",
		})
		return
	}
	defer file.Close()

	var meta types.IngestMetadata
	if raw := c.Request.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Invalid metadata",
			})
			return
		}
	}
	if meta.Title == "" {
		meta.Title = header.Filename
	}

	if header.Size > h.maxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, types.DataResponse{
			Status:  false,
			Message: "File too large",
		})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	path, size, _, err := utils.SaveUpload(h.uploadDir, header.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	result, err := h.ingestService.IngestFile(c.Request.Context(), path, mimeType, size, meta)
	if err != nil {
		h.sendIngestError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   result,
	})
}

// HandleIngestURL ingests the visible text of a web page.
func (h *IngestHandler) HandleIngestURL(c *gin.Context) {
	var req types.IngestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	result, err := h.ingestService.IngestURL(c.Request.Context(), req)
	if err != nil {
		h.sendIngestError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   result,
	})
}

// HandleIngestText indexes a manually authored snippet.
func (h *IngestHandler) HandleIngestText(c *gin.Context) {
	var req types.IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	result, err := h.ingestService.IngestText(c.Request.Context(), req)
	if err != nil {
		h.sendIngestError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   result,
	})
}

func (h *IngestHandler) sendIngestError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnsupportedMime):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrInvalidEntity),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrEmptyURL):
		status = http.StatusBadRequest
	}
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: err.Error(),
	})
}
