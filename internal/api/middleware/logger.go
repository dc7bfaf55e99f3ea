package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger 请求日志中间件
// 5xx 记 error，4xx 记 warn，其余 info
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("remote_addr", c.ClientIP()),
			zap.Int("status", status),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			zap.L().Error("HTTP请求", fields...)
		case status >= 400:
			zap.L().Warn("HTTP请求", fields...)
		default:
			zap.L().Info("HTTP请求", fields...)
		}
	}
}
