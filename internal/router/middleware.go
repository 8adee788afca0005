package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/authz"
	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const subjectContextKey = "auth_subject"
const rolesContextKey = "auth_roles"

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.SW(requestIDKey, requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"subject", c.GetString(subjectContextKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// MetricsMiddleware 记录请求次数与耗时，按路由模板聚合
func MetricsMiddleware(m *metrics.ShippingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// AccessClaims 外部签发的访问令牌声明
type AccessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// BearerAuthMiddleware 校验外部签发的 Bearer 令牌，写入主体与角色
func BearerAuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	secretKey := strings.TrimSpace(cfg.JWTSecret)
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(options...)

	return func(c *gin.Context) {
		if secretKey == "" {
			response.Abort(c, response.CodeUnauthorized, "jwt secret is not configured")
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, response.CodeUnauthorized, "authorization header is missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Abort(c, response.CodeUnauthorized, "authorization header is invalid")
			return
		}

		claims := &AccessClaims{}
		token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
			response.Abort(c, response.CodeUnauthorized, "token is invalid")
			return
		}

		c.Set(subjectContextKey, strings.TrimSpace(claims.Subject))
		c.Set(rolesContextKey, claims.Roles)
		c.Next()
	}
}

// RBACMiddleware 出货接口 RBAC 鉴权中间件
func RBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("shipping_rbac_service_unavailable")
			response.Abort(c, response.CodeUnauthorized, "unauthorized")
			return
		}

		subject := c.GetString(subjectContextKey)
		roles := c.GetStringSlice(rolesContextKey)
		if subject == "" {
			response.Abort(c, response.CodeUnauthorized, "unauthorized")
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceRequest(subject, roles, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("shipping_rbac_enforce_failed",
				"subject", subject,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Abort(c, response.CodeUnauthorized, "unauthorized")
			return
		}
		if !allowed {
			logger.Warnw("shipping_rbac_permission_denied",
				"subject", subject,
				"roles", roles,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Abort(c, response.CodeForbidden, "forbidden")
			return
		}

		c.Next()
	}
}
