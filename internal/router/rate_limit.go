package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	// WriteOnly 为 true 时 GET/HEAD/OPTIONS 不计数
	WriteOnly bool
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 固定窗口限流；Redis 异常时放行并告警，不阻断产线写入
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}
		if rule.WriteOnly && isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := rule.key(c, keyFunc)
		count, ttl, err := hitWindow(c, client, key, rule.WindowSeconds)
		if err != nil {
			logger.Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		remaining := int64(rule.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		wait := retryAfter(ttl, rule.WindowSeconds)
		logger.Warnw("rate_limit_exceeded", "key", key, "count", count, "retry_after", wait)
		c.Header("Retry-After", strconv.Itoa(wait))
		response.Abort(c, response.CodeTooManyRequests, fmt.Sprintf("too many requests, retry in %d seconds", wait))
	}
}

func (r RateLimitRule) key(c *gin.Context, keyFunc RateLimitKeyFunc) string {
	key := ""
	if keyFunc != nil {
		key = strings.TrimSpace(keyFunc(c))
	}
	if key == "" {
		key = c.ClientIP()
	}
	if r.Prefix == "" {
		return key
	}
	return r.Prefix + ":" + key
}

// hitWindow 计数加一并返回当前计数与剩余秒数
func hitWindow(c *gin.Context, client *redis.Client, key string, window int) (int64, int64, error) {
	result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, window).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, errors.New("unexpected rate limit script result")
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, errors.New("unexpected rate limit counter")
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

func retryAfter(ttl int64, window int) int {
	wait := int(ttl)
	if wait < 1 {
		wait = window
	}
	if wait < 1 {
		wait = 1
	}
	return wait
}

// KeyBySubjectOrIP 已鉴权请求按令牌主体限流，否则按 IP
func KeyBySubjectOrIP(c *gin.Context) string {
	if subject := c.GetString(subjectContextKey); subject != "" {
		return "sub|" + subject
	}
	return c.ClientIP()
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func toInt64(value interface{}) (int64, bool) {
	// go-redis 将 Lua 整数返回为 int64
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
