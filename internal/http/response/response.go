package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"` // 业务状态码
	Message    string      `json:"message"`     // 提示消息
	Data       interface{} `json:"data"`        // 数据内容
}

// PageResponse 分页响应结构
type PageResponse struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// BuildPagination 根据总数计算分页信息
func BuildPagination(page, pageSize int, total int64) Pagination {
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	}
}

// write 输出统一结构
func write(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Success: true, StatusCode: CodeOK, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Response{Success: true, StatusCode: CodeOK, Message: "created", Data: data})
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	write(c, http.StatusOK, PageResponse{
		Success:    true,
		StatusCode: CodeOK,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}

// Error 错误响应；HTTP 状态与业务码一致，data 中附带 request_id 便于排查
func Error(c *gin.Context, code int, msg string) {
	write(c, httpStatus(code), Response{
		Success:    false,
		StatusCode: code,
		Message:    msg,
		Data:       attachRequestID(c, nil),
	})
}

// Abort 错误响应并终止后续处理
func Abort(c *gin.Context, code int, msg string) {
	Error(c, code, msg)
	c.Abort()
}

// BadRequest 400响应
func BadRequest(c *gin.Context, msg string) {
	Error(c, CodeBadRequest, msg)
}

func attachRequestID(c *gin.Context, data interface{}) interface{} {
	requestID := ""
	if c != nil {
		if value, ok := c.Get("request_id"); ok {
			if id, ok := value.(string); ok {
				requestID = id
			}
		}
	}
	if requestID == "" {
		return data
	}
	if data == nil {
		return gin.H{"request_id": requestID}
	}
	switch v := data.(type) {
	case gin.H:
		if _, ok := v["request_id"]; !ok {
			v["request_id"] = requestID
		}
		return v
	default:
		return gin.H{
			"request_id": requestID,
			"data":       data,
		}
	}
}
