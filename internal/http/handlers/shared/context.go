package shared

import (
	"strconv"
	"strings"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParamUint 读取路径中的 uint 参数，非法时直接写出 400。
func ParamUint(c *gin.Context, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(key))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		response.BadRequest(c, "invalid "+key)
		return 0, false
	}
	return uint(value), true
}

// QueryUint 读取可选的 uint 查询参数，缺省返回 0。
func QueryUint(c *gin.Context, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid "+key)
		return 0, false
	}
	return uint(value), true
}

// QueryBool 读取布尔查询参数
func QueryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}
