package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("请求处理异常",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("remote_addr", c.ClientIP()),
				)

				response.GinError(c, http.StatusInternalServerError, "服务器内部错误", nil)
				c.Abort()
			}
		}()

		c.Next()
	}
}
