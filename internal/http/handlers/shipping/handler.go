package shipping

import (
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 出货接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建出货处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

const dateLayout = "2006-01-02"

// parseDate 解析日期，支持 2006-01-02 与 RFC3339
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(dateLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// parseOptionalDate 空串返回 nil
func parseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// bindOptionalJSON 请求体可以为空
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

// parseStatsRange 统计区间 from/to 均为必填日期
func parseStatsRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		response.BadRequest(c, "invalid from date")
		return time.Time{}, time.Time{}, false
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		response.BadRequest(c, "invalid to date")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
