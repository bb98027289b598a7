package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/semidx/semidx/internal/pkg/errcode"
	"github.com/semidx/semidx/internal/pkg/response"
	"github.com/semidx/semidx/internal/service"
	"github.com/semidx/semidx/internal/store"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query        string            `json:"query"`
	Limit        int               `json:"limit"`
	Threshold    float64           `json:"threshold"`
	PathContains string            `json:"path_contains"`
	Metadata     map[string]string `json:"metadata"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	var filters *store.SearchFilters
	if req.PathContains != "" || len(req.Metadata) > 0 {
		filters = &store.SearchFilters{
			PathContains: req.PathContains,
			Metadata:     req.Metadata,
		}
	}
	results, err := h.search.Search(c.Request.Context(), req.Query, service.SearchOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Filters:   filters,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results, "count": len(results)})
}

func (h *SearchHandler) Status(c *gin.Context) {
	info, err := h.search.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}

func (h *SearchHandler) Paths(c *gin.Context) {
	paths, err := h.search.AllPaths(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"paths": paths, "count": len(paths)})
}
