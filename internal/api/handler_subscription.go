package api

import (
	"errors"
	"net/http"

	"github.com/cod3vil/niuss-sub001/internal/api/response"
	"github.com/cod3vil/niuss-sub001/internal/service"
	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubscriptionHandler 订阅档案处理器
type SubscriptionHandler struct {
	app *App
}

// NewSubscriptionHandler 创建订阅档案处理器
func NewSubscriptionHandler(app *App) *SubscriptionHandler {
	return &SubscriptionHandler{app: app}
}

// GetProfile 按订阅令牌返回 Clash 档案
// 客户端直接消费 YAML，不走统一的 JSON 响应包装
func (h *SubscriptionHandler) GetProfile(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.GinBadRequest(c, "缺少订阅令牌")
		return
	}

	doc, err := h.app.Profile.GetProfile(token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			response.GinNotFound(c, "订阅不存在")
		case errors.Is(err, service.ErrTransient):
			response.GinServiceUnavailable(c, "存储暂时不可用", nil)
		default:
			logger.Error("生成订阅档案失败", zap.Error(err))
			response.GinInternalError(c, "生成档案失败", nil)
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename="profile.yaml"`)
	c.Data(http.StatusOK, "application/x-yaml; charset=utf-8", doc)
}
