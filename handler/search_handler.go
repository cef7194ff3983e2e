package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opsgraph/knowledge-be/service"
	"github.com/opsgraph/knowledge-be/types"
)

type SearchHandler struct {
	searchService *service.SearchService
}

func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// HandleSearch serves lexical and semantic queries from the query string.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid query parameters",
		})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Missing query parameter q",
		})
		return
	}

	opts := types.SearchOptions{
		Query:          req.Query,
		Mode:           types.SearchMode(req.Mode),
		Limit:          req.Limit,
		Threshold:      req.Threshold,
		IncludeContent: req.Content,
	}
	if req.EntityType != "" {
		if !types.ValidEntityType(types.EntityType(req.EntityType)) {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Unknown entity type " + req.EntityType,
			})
			return
		}
		opts.Entity = &types.EntityRef{
			Type: types.EntityType(req.EntityType),
			ID:   req.EntityID,
		}
	}

	resp, err := h.searchService.Search(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   resp,
	})
}
