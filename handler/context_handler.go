package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/types"
)

type ContextHandler struct {
	store database.KnowledgeStore
}

func NewContextHandler(store database.KnowledgeStore) *ContextHandler {
	return &ContextHandler{
		store: store,
	}
}

// HandleEntityContext returns the attachments, documents and snippets linked
// to one entity, e.g. GET /knowledge/context/ticket/42.
func (h *ContextHandler) HandleEntityContext(c *gin.Context) {
	entityType := types.EntityType(c.Param("type"))
	if !types.ValidEntityType(entityType) {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Unknown entity type " + c.Param("type"),
		})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid entity id",
		})
		return
	}

	out, err := h.store.EntityContext(c.Request.Context(), types.EntityRef{Type: entityType, ID: id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   out,
	})
}
