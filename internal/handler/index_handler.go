package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/semidx/semidx/internal/pkg/errcode"
	"github.com/semidx/semidx/internal/pkg/response"
	"github.com/semidx/semidx/internal/service"
	"github.com/semidx/semidx/internal/watcher"
)

type IndexHandler struct {
	index   *service.IndexService
	watcher *watcher.Watcher
}

func NewIndexHandler(index *service.IndexService, w *watcher.Watcher) *IndexHandler {
	return &IndexHandler{index: index, watcher: w}
}

type indexFilesRequest struct {
	Files []service.FileInput `json:"files"`
}

type indexTextRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type watchRequest struct {
	Path string `json:"path"`
}

type deleteSourceRequest struct {
	Path string `json:"path"`
}

func (h *IndexHandler) IndexFiles(c *gin.Context) {
	var req indexFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.Files) == 0 {
		response.Error(c, errcode.ErrInvalid, "files are required")
		return
	}
	stats, err := h.index.IndexFiles(c.Request.Context(), req.Files)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *IndexHandler) IndexText(c *gin.Context) {
	var req indexTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Path) == "" || strings.TrimSpace(req.Content) == "" {
		response.Error(c, errcode.ErrInvalid, "path and content are required")
		return
	}
	stats, err := h.index.IndexText(c.Request.Context(), req.Path, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *IndexHandler) DeleteSource(c *gin.Context) {
	var req deleteSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Path == "" {
		response.Error(c, errcode.ErrInvalid, "path is required")
		return
	}
	removed, err := h.index.DeleteSource(c.Request.Context(), req.Path)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}

func (h *IndexHandler) Clear(c *gin.Context) {
	if err := h.index.ClearAll(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}

func (h *IndexHandler) Watch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Path == "" {
		response.Error(c, errcode.ErrInvalid, "path is required")
		return
	}
	if err := h.watcher.Watch(c.Request.Context(), req.Path); err != nil {
		response.Error(c, errcode.ErrWatchFailed, err.Error())
		return
	}
	response.Success(c, gin.H{"watching": req.Path})
}

func (h *IndexHandler) Unwatch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Path == "" {
		response.Error(c, errcode.ErrInvalid, "path is required")
		return
	}
	h.watcher.Unwatch(c.Request.Context(), req.Path)
	response.Success(c, gin.H{"watching": false})
}

func (h *IndexHandler) WatchStatus(c *gin.Context) {
	response.Success(c, h.watcher.Status())
}
