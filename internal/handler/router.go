package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Search *SearchHandler
	Index  *IndexHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/search", deps.Search.Search)
	api.GET("/status", deps.Search.Status)
	api.GET("/paths", deps.Search.Paths)

	api.POST("/index/files", deps.Index.IndexFiles)
	api.POST("/index/text", deps.Index.IndexText)
	api.POST("/index/delete", deps.Index.DeleteSource)
	api.POST("/index/clear", deps.Index.Clear)

	api.POST("/watch", deps.Index.Watch)
	api.POST("/unwatch", deps.Index.Unwatch)
	api.GET("/watch/status", deps.Index.WatchStatus)
}
