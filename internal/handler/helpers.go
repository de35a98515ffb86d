package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/middleware"
	"github.com/xxxsen/csassist/internal/pkg/errcode"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
	"github.com/xxxsen/csassist/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	var remote *appErr.RemoteError
	switch {
	case errors.As(err, &remote):
		response.Error(c, errcode.ErrRemoteCall, "Error processing request: "+remote.Err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// queryBool reads an optional boolean query parameter.
func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: bad %s", appErr.ErrInvalid, key)
	}
	return v, nil
}
