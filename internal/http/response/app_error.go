package response

import "github.com/gin-gonic/gin"

// AppError 携带响应码与原始错误，原始错误只进日志不进响应体
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err == nil:
		return e.Message
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus 对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	if e == nil {
		return httpStatus(CodeOK)
	}
	return httpStatus(e.Code)
}

// LogFields 结构化日志字段
func (e *AppError) LogFields() []interface{} {
	if e == nil {
		return nil
	}
	fields := []interface{}{"code", e.Code, "http_status", e.HTTPStatus(), "message", e.Message}
	if e.Err != nil {
		fields = append(fields, "error", e.Err)
	}
	return fields
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Fail 以 AppError 输出错误响应
func Fail(c *gin.Context, appErr *AppError) {
	if appErr == nil {
		return
	}
	Error(c, appErr.Code, appErr.Message)
}
