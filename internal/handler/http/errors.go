package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/service"
)

// HandleServiceError 把服务层错误映射为 HTTP 响应
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidDuration):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFoundOrExpired):
		ErrorResponse(c, http.StatusNotFound, "not_found_or_expired")
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrConflict):
		ErrorResponse(c, http.StatusConflict, "conflict")
	default:
		// 存储层故障走这里：记日志、回 500，进程继续活着
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
