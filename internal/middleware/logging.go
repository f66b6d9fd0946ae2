// Package middleware 提供 HTTP 中间件
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// opsPaths 运维探针与指标抓取，不写访问日志
var opsPaths = map[string]struct{}{
	"/health": {},
	"/ping":   {},
	"/ready":  {},
}

// AccessLog 访问日志中间件
// 按路由模板记录，不记录请求体与响应体：申请与收款信息含个人数据
func AccessLog(logger *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opsPaths)+len(skipPaths))
	for p := range opsPaths {
		skip[p] = struct{}{}
	}
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if subjectID := GetSubjectID(c); subjectID != "" {
			fields = append(fields,
				zap.String("subject_id", subjectID),
				zap.String("user_type", GetUserType(c)),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("请求失败", fields...)
		case status >= 400:
			logger.Warn("请求被拒绝", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}
