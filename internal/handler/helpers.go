package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/pkg/errcode"
	apperr "github.com/semidx/semidx/internal/pkg/errors"
	"github.com/semidx/semidx/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, apperr.ErrRateLimit):
		response.Error(c, errcode.ErrTooMany, "provider rate limited")
	case errors.Is(err, apperr.ErrAuth):
		response.Error(c, errcode.ErrProviderUnavailable, "provider rejected credentials")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
