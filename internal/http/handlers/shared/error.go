package shared

import (
	"errors"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// ErrorCode 业务错误类别映射为响应码
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return response.CodeOK
	case errors.Is(err, service.ErrNotFound):
		return response.CodeNotFound
	case errors.Is(err, service.ErrConflict):
		return response.CodeConflict
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrValidation):
		return response.CodeBadRequest
	default:
		return response.CodeInternal
	}
}

// RespondServiceError 返回服务层错误；业务错误原样返回消息，其余错误只记录日志。
func RespondServiceError(c *gin.Context, err error) {
	code := ErrorCode(err)
	if code != response.CodeInternal {
		response.Error(c, code, err.Error())
		return
	}
	RespondErrorWithMsg(c, code, internalErrorMessage, err)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error", appErr.LogFields()...)
	}
	response.Fail(c, appErr)
}

// RespondBindError 请求参数校验失败
func RespondBindError(c *gin.Context, err error) {
	msg := "invalid request"
	if err != nil {
		msg = "invalid request: " + err.Error()
	}
	response.BadRequest(c, msg)
}
